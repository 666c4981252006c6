package webeid

import "crypto/x509"

// ocspService is the resolved responder a given subject/issuer pair should
// be checked against, spec §4.4.
type ocspService struct {
	url               string
	supportsNonce     bool
	designated        bool
	pinnedCertificate *x509.Certificate
}

// selectOCSPService implements spec §4.4: prefer the designated responder
// when it is configured and lists the subject's issuer, otherwise fall back
// to the AIA-advertised responder (the first "http://" URL the standard
// library's X.509 parser already extracted into cert.OCSPServer — the same
// field the teacher's getOCSPServer filters).
func selectOCSPService(subject, issuer *x509.Certificate, cfg *Configuration) (*ocspService, error) {
	if cfg.designatedOCSPService.supports(issuer) {
		d := cfg.designatedOCSPService
		return &ocspService{
			url:               d.URL,
			supportsNonce:     d.SupportsNonce,
			designated:        true,
			pinnedCertificate: d.ResponderCertificate,
		}, nil
	}

	url := getAIAOCSPURL(subject)
	if url == "" {
		return nil, wrapf(CodeOCSPURLMissing, ErrOCSPURLMissing, "certificate has no Authority Information Access OCSP URL")
	}

	_, nonceDisabled := cfg.nonceDisabledOCSPURLs[url]
	return &ocspService{
		url:           url,
		supportsNonce: !nonceDisabled,
		designated:    false,
	}, nil
}

// getAIAOCSPURL returns the first "http://" OCSP responder URL from the
// subject certificate's Authority Information Access extension, ignoring
// any others, per SPEC_FULL §9 / spec §9 open question resolution.
func getAIAOCSPURL(subject *x509.Certificate) string {
	for _, server := range subject.OCSPServer {
		if len(server) >= len("http://") && server[:len("http://")] == "http://" {
			return server
		}
	}
	// Fall back to any scheme if no plain-HTTP URL is present; an https
	// responder is still a usable AIA OCSP URL even though the teacher's
	// getOCSPServer (written for a one-shot CLI tool) only trusted http.
	if len(subject.OCSPServer) > 0 {
		return subject.OCSPServer[0]
	}
	return ""
}
