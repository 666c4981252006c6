package webeid

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultOCSPRequestTimeout is used when the builder isn't told otherwise.
// See spec §3 "Configuration".
const DefaultOCSPRequestTimeout = 5 * time.Second

// DesignatedOCSPServiceConfiguration pins a single OCSP responder to use
// instead of the AIA-advertised one for a configured set of issuers.
type DesignatedOCSPServiceConfiguration struct {
	// ResponderCertificate is compared byte-for-byte (constant time) against
	// the responder certificate on every response.
	ResponderCertificate *x509.Certificate
	URL                  string
	SupportedIssuers     []*x509.Certificate
	SupportsNonce        bool
}

func (d *DesignatedOCSPServiceConfiguration) supports(issuer *x509.Certificate) bool {
	if d == nil || issuer == nil {
		return false
	}
	for _, supported := range d.SupportedIssuers {
		if supported.Subject.String() == issuer.Subject.String() {
			return true
		}
	}
	return false
}

// Configuration is the immutable, shared, read-only state every validation
// uses. Build one with NewConfigurationBuilder and its With* options, then reuse it
// across goroutines and requests — it holds no per-request state.
type Configuration struct {
	siteOrigin             string
	trustedCAs             []*x509.Certificate
	disallowedPolicyOIDs   []string
	ocspRequestTimeout     time.Duration
	nonceDisabledOCSPURLs  map[string]struct{}
	designatedOCSPService  *DesignatedOCSPServiceConfiguration
	disableOCSPCheck       bool
	extraSubjectValidators []SubjectCertificateValidator
	logger                 zerolog.Logger
}

// ConfigurationBuilder accumulates options before Build validates and
// freezes them into a Configuration. Mirrors the teacher's nil-means-default
// Config, but as a fluent builder since the configuration surface here is
// much larger (spec §6).
type ConfigurationBuilder struct {
	cfg Configuration
	err error
}

// NewConfigurationBuilder starts building a Configuration for the given site
// origin and at least one trusted intermediate CA.
func NewConfigurationBuilder(siteOrigin string, trustedCAs ...*x509.Certificate) *ConfigurationBuilder {
	b := &ConfigurationBuilder{
		cfg: Configuration{
			siteOrigin:            siteOrigin,
			trustedCAs:            append([]*x509.Certificate(nil), trustedCAs...),
			ocspRequestTimeout:    DefaultOCSPRequestTimeout,
			nonceDisabledOCSPURLs: map[string]struct{}{},
			logger:                zerolog.Nop(),
		},
	}
	return b
}

// WithDisallowedPolicyOID forbids the given certificate-policy OID in the
// subject certificate's certificatePolicies extension.
func (b *ConfigurationBuilder) WithDisallowedPolicyOID(oid string) *ConfigurationBuilder {
	b.cfg.disallowedPolicyOIDs = append(b.cfg.disallowedPolicyOIDs, oid)
	return b
}

// WithOCSPRequestTimeout overrides DefaultOCSPRequestTimeout.
func (b *ConfigurationBuilder) WithOCSPRequestTimeout(d time.Duration) *ConfigurationBuilder {
	b.cfg.ocspRequestTimeout = d
	return b
}

// WithNonceDisabledOCSPURL marks a responder URL as not supporting the OCSP
// nonce extension; the request builder will omit it for that URL and the
// response validator will not require nonce equality.
func (b *ConfigurationBuilder) WithNonceDisabledOCSPURL(rawURL string) *ConfigurationBuilder {
	b.cfg.nonceDisabledOCSPURLs[rawURL] = struct{}{}
	return b
}

// WithDesignatedOCSPService pins a responder for the given issuer set,
// bypassing AIA lookup for those issuers.
func (b *ConfigurationBuilder) WithDesignatedOCSPService(svc *DesignatedOCSPServiceConfiguration) *ConfigurationBuilder {
	b.cfg.designatedOCSPService = svc
	return b
}

// WithOCSPCheckDisabled skips revocation checking entirely (spec §4.8 step
// 4, §5 "no network I/O").
func (b *ConfigurationBuilder) WithOCSPCheckDisabled(disabled bool) *ConfigurationBuilder {
	b.cfg.disableOCSPCheck = disabled
	return b
}

// WithExtraSubjectCertificateValidator appends an optional check to the
// fixed C3 validator chain (e.g. the organization-certificate check
// described in SPEC_FULL §4.3). Never enabled by default.
func (b *ConfigurationBuilder) WithExtraSubjectCertificateValidator(v SubjectCertificateValidator) *ConfigurationBuilder {
	b.cfg.extraSubjectValidators = append(b.cfg.extraSubjectValidators, v)
	return b
}

// WithLogger attaches a structured logger for pipeline diagnostics. Never
// logs signature, private key or nonce bytes. Defaults to a no-op logger.
func (b *ConfigurationBuilder) WithLogger(logger zerolog.Logger) *ConfigurationBuilder {
	b.cfg.logger = logger
	return b
}

// Build validates and freezes the configuration.
func (b *ConfigurationBuilder) Build() (*Configuration, error) {
	if b.err != nil {
		return nil, b.err
	}
	parsed, err := url.Parse(b.cfg.siteOrigin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("webeid: site origin %q must be an absolute scheme://host[:port] URL", b.cfg.siteOrigin)
	}
	if len(b.cfg.trustedCAs) == 0 {
		return nil, errors.New("webeid: at least one trusted CA is required")
	}
	if b.cfg.ocspRequestTimeout < 0 {
		return nil, errors.New("webeid: OCSP request timeout must not be negative")
	}

	cfg := b.cfg
	cfg.trustedCAs = append([]*x509.Certificate(nil), b.cfg.trustedCAs...)
	return &cfg, nil
}
