package webeid

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
)

// maxOCSPResponseBytes bounds how much of an OCSP responder's body this
// module will read, defending a long-lived server against a misbehaving or
// hostile responder URL — see SPEC_FULL §9.
const maxOCSPResponseBytes = 64 * 1024

// AuthTokenValidator runs the full validation pipeline (spec §4.8) against
// a Web eID authentication token. A validator is immutable after
// construction and safe to call concurrently from many goroutines; each
// call operates on its own per-request state.
type AuthTokenValidator interface {
	// Validate parses tokenJSON, runs every check in order, and returns the
	// authenticated subject certificate, or the first ValidationError.
	Validate(ctx context.Context, tokenJSON []byte, nonce []byte) (*x509.Certificate, error)
}

type validator struct {
	cfg        *Configuration
	httpClient *http.Client
}

// New builds an AuthTokenValidator from a Configuration produced by
// ConfigurationBuilder.Build.
func New(cfg *Configuration) AuthTokenValidator {
	return &validator{cfg: cfg, httpClient: http.DefaultClient}
}

// newWithHTTPClient is used by tests to inject a fake transport.
func newWithHTTPClient(cfg *Configuration, client *http.Client) AuthTokenValidator {
	return &validator{cfg: cfg, httpClient: client}
}

func (v *validator) Validate(ctx context.Context, tokenJSON []byte, nonce []byte) (*x509.Certificate, error) {
	log := v.cfg.logger

	// State: Init -> Parsed
	if len(nonce) == 0 {
		return nil, wrapf(CodeChallengeEmpty, ErrChallengeEmpty, "challenge nonce must not be empty")
	}

	tok, err := parseAuthToken(tokenJSON)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("subject", tok.certificate.Subject.String()).
		Str("algorithm", tok.Algorithm).
		Str("fingerprint", certificateSHA256Fingerprint(tok.certificate)).
		Msg("parsed auth token")

	// State: Parsed -> SubjectChecked
	issuer, err := runSubjectCertificateValidators(tok.certificate, v.cfg)
	if err != nil {
		log.Debug().Err(err).Msg("subject certificate validation failed")
		return nil, err
	}
	log.Debug().Str("issuer", issuer.Subject.String()).Msg("subject certificate is trusted")

	// State: SubjectChecked -> (Revocation? -> Revoked/Fresh)
	if !v.cfg.disableOCSPCheck {
		if err := v.checkRevocation(ctx, tok.certificate, issuer); err != nil {
			log.Debug().Err(err).Msg("OCSP revocation check failed")
			return nil, err
		}
		log.Debug().Msg("OCSP check confirms certificate is not revoked")
	}

	// State: Fresh -> SignatureVerified
	pub, err := subjectPublicKey(tok.certificate)
	if err != nil {
		return nil, err
	}
	if err := verifyTokenSignature(tok.Algorithm, tok.rawSignature, pub, v.cfg.siteOrigin, nonce); err != nil {
		log.Debug().Err(err).Msg("token signature verification failed")
		return nil, err
	}

	// State: Done
	log.Debug().Str("subject", tok.certificate.Subject.String()).Msg("authentication token is valid")
	return tok.certificate, nil
}

// checkRevocation implements spec §4.8 step 4: C4 -> C5 -> transport -> C6.
func (v *validator) checkRevocation(ctx context.Context, subject, issuer *x509.Certificate) error {
	svc, err := selectOCSPService(subject, issuer, v.cfg)
	if err != nil {
		return err
	}

	req, err := buildOCSPRequest(subject, issuer, svc)
	if err != nil {
		return err
	}

	respDER, err := v.sendOCSPRequest(ctx, svc.url, req.der)
	if err != nil {
		return err
	}

	return validateOCSPResponse(respDER, subject, issuer, svc, req, v.cfg.trustedCAs)
}

// sendOCSPRequest performs the OCSP HTTP POST, honouring the configured
// timeout for both connect and total response, per spec §5(a). Modeled on
// the teacher's Query function in lowlevel.go, with a bounded response body
// read added for long-lived-server safety (SPEC_FULL §9).
func (v *validator) sendOCSPRequest(ctx context.Context, serverURL string, requestDER []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.ocspRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, bytes.NewReader(requestDER))
	if err != nil {
		return nil, wrapf(CodeOCSPHTTPError, err, "invalid OCSP responder URL %q", serverURL)
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	httpResp, err := v.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapf(CodeOCSPTimeout, err, "OCSP request to %q timed out", serverURL)
		}
		return nil, wrapf(CodeOCSPHTTPError, err, "OCSP request to %q failed", serverURL)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxOCSPResponseBytes))
	if err != nil {
		return nil, wrapf(CodeOCSPHTTPError, err, "failed to read OCSP response body")
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, wrapf(CodeOCSPHTTPError, nil, "OCSP responder returned HTTP status %s", httpResp.Status)
	}
	if ct := httpResp.Header.Get("Content-Type"); ct != "" && ct != "application/ocsp-response" {
		return nil, wrapf(CodeOCSPHTTPError, nil, "OCSP responder returned unexpected Content-Type %q", ct)
	}

	return body, nil
}
