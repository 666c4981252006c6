package webeid

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"
)

// newReflectingOCSPResponder starts an httptest server that parses the
// incoming OCSP request, echoes back its nonce, and reports status for
// whatever subject certificate getSubject returns. The server's URL must be
// embedded into the subject certificate's AIA extension at creation time,
// which happens after the server has already started, so the subject is
// supplied indirectly and only read once the first request arrives.
func newReflectingOCSPResponder(t *testing.T, ca *testCA, getSubject func() *x509.Certificate, responderCert *x509.Certificate, responderKey *ecdsa.PrivateKey, status, revocationReason int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var reqASN ocspASN1Request
		if _, err := asn1.Unmarshal(body, &reqASN); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var nonce []byte
		for _, ext := range reqASN.TBSRequest.RequestExtensions {
			if ext.Id.Equal(oidOCSPNonce) {
				_, _ = asn1.Unmarshal(ext.Value, &nonce)
			}
		}

		resp := createTestOCSPResponse(t, ca, getSubject(), responderCert, responderKey, ocspResponseParams{
			status:           status,
			revocationReason: revocationReason,
			responseNonce:    nonce,
		})
		w.Header().Set("Content-Type", "application/ocsp-response")
		w.Write(resp)
	}))
}

func buildTokenJSON(t *testing.T, cert *x509.Certificate, algorithm string, signature []byte) []byte {
	t.Helper()
	tok := authToken{
		UnverifiedCertificate: base64.StdEncoding.EncodeToString(cert.Raw),
		Algorithm:             algorithm,
		Signature:             base64.StdEncoding.EncodeToString(signature),
		Format:                "web-eid:1",
	}
	b, err := json.Marshal(tok)
	require.NoError(t, err)
	return b
}

func TestValidate_HappyPath(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")
	responderCert, responderKey := newTestOCSPResponderCertificate(t, ca, "TEST of SK OCSP RESPONDER 2020")

	var subjectCert *x509.Certificate
	server := newReflectingOCSPResponder(t, ca, func() *x509.Certificate { return subjectCert }, responderCert, responderKey, ocsp.Good, 0)
	defer server.Close()

	var subjectKey *ecdsa.PrivateKey
	subjectCert, subjectKey = newTestSubjectCertificate(t, ca, subjectCertOptions{commonName: "JAAK-KRISTJAN JOEORG", ocspServer: server.URL})

	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).Build()
	require.NoError(t, err)
	v := newWithHTTPClient(cfg, server.Client())

	origin := "https://example.com"
	nonce := []byte("a-fresh-challenge-nonce")
	sig := signECDSARaw(t, "ES256", subjectKey, origin, nonce)
	tokenJSON := buildTokenJSON(t, subjectCert, "ES256", sig)

	gotCert, err := v.Validate(context.Background(), tokenJSON, nonce)
	require.NoError(t, err)
	assert.Equal(t, subjectCert.Subject.String(), gotCert.Subject.String())
}

func TestValidate_OCSPDisabledSkipsRevocationCheck(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")
	subjectCert, subjectKey := newTestSubjectCertificate(t, ca, subjectCertOptions{commonName: "JAAK-KRISTJAN JOEORG"})
	// No OCSPServer set, and OCSP checking disabled: revocation must never be attempted.

	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).
		WithOCSPCheckDisabled(true).
		Build()
	require.NoError(t, err)
	v := New(cfg)

	origin := "https://example.com"
	nonce := []byte("a-fresh-challenge-nonce")
	sig := signECDSARaw(t, "ES256", subjectKey, origin, nonce)
	tokenJSON := buildTokenJSON(t, subjectCert, "ES256", sig)

	gotCert, err := v.Validate(context.Background(), tokenJSON, nonce)
	require.NoError(t, err)
	assert.Equal(t, subjectCert.Subject.String(), gotCert.Subject.String())
}

func TestValidate_EmptyNonceRejected(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")
	subjectCert, subjectKey := newTestSubjectCertificate(t, ca, subjectCertOptions{commonName: "JANE DOE"})
	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).WithOCSPCheckDisabled(true).Build()
	require.NoError(t, err)
	v := New(cfg)

	sig := signECDSARaw(t, "ES256", subjectKey, "https://example.com", []byte("n"))
	tokenJSON := buildTokenJSON(t, subjectCert, "ES256", sig)

	_, err = v.Validate(context.Background(), tokenJSON, nil)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeChallengeEmpty, ve.Code)
}

func TestValidate_TamperedSignatureRejected(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")
	subjectCert, subjectKey := newTestSubjectCertificate(t, ca, subjectCertOptions{commonName: "JANE DOE"})
	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).WithOCSPCheckDisabled(true).Build()
	require.NoError(t, err)
	v := New(cfg)

	origin := "https://example.com"
	nonce := []byte("a-fresh-challenge-nonce")
	sig := signECDSARaw(t, "ES256", subjectKey, origin, nonce)
	sig[0] ^= 0xff
	tokenJSON := buildTokenJSON(t, subjectCert, "ES256", sig)

	_, err = v.Validate(context.Background(), tokenJSON, nonce)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeTokenSignatureInvalid, ve.Code)
}

func TestValidate_MalformedTokenJSONRejected(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")
	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).WithOCSPCheckDisabled(true).Build()
	require.NoError(t, err)
	v := New(cfg)

	_, err = v.Validate(context.Background(), []byte("not json"), []byte("nonce"))
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeTokenParse, ve.Code)
}

func TestValidate_RevokedCertificateRejected(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")
	responderCert, responderKey := newTestOCSPResponderCertificate(t, ca, "TEST of SK OCSP RESPONDER 2020")

	var subjectCert *x509.Certificate
	server := newReflectingOCSPResponder(t, ca, func() *x509.Certificate { return subjectCert }, responderCert, responderKey, ocsp.Revoked, ocsp.CessationOfOperation)
	defer server.Close()

	var subjectKey *ecdsa.PrivateKey
	subjectCert, subjectKey = newTestSubjectCertificate(t, ca, subjectCertOptions{commonName: "JAAK-KRISTJAN JOEORG", ocspServer: server.URL})

	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).Build()
	require.NoError(t, err)
	v := newWithHTTPClient(cfg, server.Client())

	origin := "https://example.com"
	nonce := []byte("a-fresh-challenge-nonce")
	sig := signECDSARaw(t, "ES256", subjectKey, origin, nonce)
	tokenJSON := buildTokenJSON(t, subjectCert, "ES256", sig)

	_, err = v.Validate(context.Background(), tokenJSON, nonce)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeCertificateRevoked, ve.Code)
}

func TestValidate_OCSPTimeout(t *testing.T) {
	ca := newTestCA(t, "TEST of ESTEID2018")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	subjectCert, subjectKey := newTestSubjectCertificate(t, ca, subjectCertOptions{commonName: "JAAK-KRISTJAN JOEORG", ocspServer: server.URL})

	cfg, err := NewConfigurationBuilder("https://example.com", ca.cert).
		WithOCSPRequestTimeout(1 * time.Millisecond).
		Build()
	require.NoError(t, err)
	v := newWithHTTPClient(cfg, server.Client())

	origin := "https://example.com"
	nonce := []byte("a-fresh-challenge-nonce")
	sig := signECDSARaw(t, "ES256", subjectKey, origin, nonce)
	tokenJSON := buildTokenJSON(t, subjectCert, "ES256", sig)

	_, err = v.Validate(context.Background(), tokenJSON, nonce)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeOCSPTimeout, ve.Code)
}
