package webeid

import (
	"crypto/x509"
	"encoding/asn1"
	"time"
)

// oidClientAuthEKU is id-kp-clientAuth, RFC 5280 / spec §4.3.
var oidClientAuthEKU = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}

// SubjectCertificateValidator is one check in the fixed C3 chain. Validate
// receives the parsed, not-yet-trusted subject certificate.
type SubjectCertificateValidator interface {
	Validate(subject *x509.Certificate) error
}

type purposeValidator struct{}

func (purposeValidator) Validate(subject *x509.Certificate) error {
	if subject.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return wrapf(CodeCertificateWrongPurpose, nil, "certificate key usage does not include digitalSignature")
	}
	hasClientAuth := false
	for _, eku := range subject.ExtKeyUsage {
		if eku == x509.ExtKeyUsageClientAuth {
			hasClientAuth = true
			break
		}
	}
	if !hasClientAuth {
		for _, oid := range subject.UnknownExtKeyUsage {
			if oid.Equal(oidClientAuthEKU) {
				hasClientAuth = true
				break
			}
		}
	}
	if !hasClientAuth {
		return wrapf(CodeCertificateWrongPurpose, nil, "certificate extended key usage does not include clientAuth")
	}
	return nil
}

type validityValidator struct {
	now func() time.Time
}

func (v validityValidator) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

func (v validityValidator) Validate(subject *x509.Certificate) error {
	now := v.clock().UTC()
	if now.Before(subject.NotBefore.UTC()) {
		return wrapf(CodeCertificateNotYetValid, nil, "certificate is not valid until %s", subject.NotBefore.UTC())
	}
	if now.After(subject.NotAfter.UTC()) {
		return wrapf(CodeCertificateExpired, nil, "certificate expired at %s", subject.NotAfter.UTC())
	}
	return nil
}

type policyValidator struct {
	disallowedOIDs []string
}

func (v policyValidator) Validate(subject *x509.Certificate) error {
	if len(v.disallowedOIDs) == 0 {
		return nil
	}
	disallowed := make(map[string]struct{}, len(v.disallowedOIDs))
	for _, oid := range v.disallowedOIDs {
		disallowed[oid] = struct{}{}
	}
	for _, oid := range subject.PolicyIdentifiers {
		if _, bad := disallowed[oid.String()]; bad {
			return wrapf(CodeCertificateDisallowedPolicy, nil, "certificate policy %s is disallowed", oid.String())
		}
	}
	return nil
}

// trustValidator runs C2 and stashes the verified issuer so later pipeline
// stages (OCSP service selection, CertID construction) don't need to
// re-derive it.
type trustValidator struct {
	trustedCAs []*x509.Certificate
	issuer     *x509.Certificate
}

func (v *trustValidator) Validate(subject *x509.Certificate) error {
	issuer, err := verifyCertificateTrust(subject, v.trustedCAs)
	if err != nil {
		return err
	}
	v.issuer = issuer
	return nil
}

// OrganizationCertificateValidator is an optional extra check, never part of
// the fixed four-validator chain, for deployments that only want to
// authenticate organization/legal-entity representatives rather than
// natural persons. Organization and e-seal certificates carry a non-empty
// Organization (O) attribute in the subject DN; natural-person eID
// certificates don't.
type OrganizationCertificateValidator struct{}

// NewOrganizationCertificateValidator returns a SubjectCertificateValidator
// that rejects certificates with no Organization (O) attribute, for passing
// to WithExtraSubjectCertificateValidator.
func NewOrganizationCertificateValidator() SubjectCertificateValidator {
	return OrganizationCertificateValidator{}
}

func (OrganizationCertificateValidator) Validate(subject *x509.Certificate) error {
	if len(subject.Subject.Organization) == 0 {
		return wrapf(CodeCertificateWrongPurpose, nil, "certificate is not an organization certificate: subject has no Organization (O) attribute")
	}
	return nil
}

// runSubjectCertificateValidators executes the fixed four-check chain plus
// any caller-configured extras, in order, stopping at the first failure
// (spec §4.3). It returns the trusted issuer on success.
func runSubjectCertificateValidators(subject *x509.Certificate, cfg *Configuration) (*x509.Certificate, error) {
	trust := &trustValidator{trustedCAs: cfg.trustedCAs}
	chain := []SubjectCertificateValidator{
		purposeValidator{},
		validityValidator{},
		policyValidator{disallowedOIDs: cfg.disallowedPolicyOIDs},
		trust,
	}
	chain = append(chain, cfg.extraSubjectValidators...)

	for _, v := range chain {
		if err := v.Validate(subject); err != nil {
			return nil, err
		}
	}
	return trust.issuer, nil
}
