package webeid

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
)

// certificateSHA256Fingerprint returns the hex-encoded SHA-256 digest of the
// certificate's DER encoding, suitable for correlating log lines across a
// validation run without logging any secret or key material.
func certificateSHA256Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// verifyCertificateTrust implements spec §4.2: find a trusted CA whose
// subject DN matches subject.Issuer, and whose public key verifies
// subject's TBS signature. The trusted set is expected to hold direct
// issuers only — this does not recurse to a root, mirroring the single-hop
// CheckSignatureFrom / embedded-certificate check the OCSP response parser
// in smallstep-ocsp performs against a single supplied issuer certificate.
func verifyCertificateTrust(subject *x509.Certificate, trustedCAs []*x509.Certificate) (*x509.Certificate, error) {
	for _, candidate := range trustedCAs {
		if candidate.Subject.String() != subject.Issuer.String() {
			continue
		}
		if err := subject.CheckSignatureFrom(candidate); err != nil {
			continue
		}
		return candidate, nil
	}
	return nil, wrapf(CodeCertificateNotTrusted, ErrCertificateNotTrusted, "no trusted CA verifies certificate issued by %q", subject.Issuer.String())
}
