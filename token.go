package webeid

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
)

// authToken is the opaque client-submitted payload, spec §3 "AuthToken" and
// §6 "Auth token wire format". It is read-only after parseAuthToken returns
// and is discarded once the pipeline finishes.
type authToken struct {
	UnverifiedCertificate string `json:"unverifiedCertificate"`
	Algorithm             string `json:"algorithm"`
	Signature             string `json:"signature"`
	Format                string `json:"format"`

	certificate  *x509.Certificate
	rawSignature []byte
}

// parseAuthToken decodes the wire JSON, base64-decodes the certificate and
// signature, and parses the X.509 certificate. The "format" field is only
// checked for presence, per spec §6.
func parseAuthToken(tokenJSON []byte) (*authToken, error) {
	var tok authToken
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, wrapf(CodeTokenParse, err, "malformed auth token JSON")
	}
	if tok.UnverifiedCertificate == "" || tok.Algorithm == "" || tok.Signature == "" || tok.Format == "" {
		return nil, wrapf(CodeTokenParse, nil, "auth token is missing a required field")
	}

	certDER, err := base64.StdEncoding.DecodeString(tok.UnverifiedCertificate)
	if err != nil {
		return nil, wrapf(CodeTokenParse, err, "unverifiedCertificate is not valid base64")
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, wrapf(CodeTokenParse, err, "unable to parse X.509 certificate")
	}
	tok.certificate = cert

	sig, err := base64.StdEncoding.DecodeString(tok.Signature)
	if err != nil {
		return nil, wrapf(CodeTokenParse, err, "signature is not valid base64")
	}
	tok.rawSignature = sig

	return &tok, nil
}
