package webeid

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testCA is a self-signed certificate playing the role of a configured
// trusted intermediate CA (spec §3 "TrustedCA set" — single-hop, no root
// above it is consulted).
type testCA struct {
	cert       *x509.Certificate
	privateKey *ecdsa.PrivateKey
}

func newTestCA(t *testing.T, commonName string) *testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:                pkix.Name{CommonName: commonName},
		NotBefore:              time.Now().Add(-time.Hour),
		NotAfter:               time.Now().Add(24 * time.Hour),
		KeyUsage:               x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid:  true,
		IsCA:                   true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &testCA{cert: cert, privateKey: key}
}

type subjectCertOptions struct {
	commonName        string
	organization      string
	ocspServer        string
	policyOIDs        []asn1.ObjectIdentifier
	notBefore         time.Time
	notAfter          time.Time
	omitClientAuthEKU bool
}

// newTestSubjectCertificate issues a certificate signed by ca, suitable for
// use as the AuthToken's unverifiedCertificate.
func newTestSubjectCertificate(t *testing.T, ca *testCA, opts subjectCertOptions) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	notBefore := opts.notBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Hour)
	}
	notAfter := opts.notAfter
	if notAfter.IsZero() {
		notAfter = time.Now().Add(24 * time.Hour)
	}

	ekus := []x509.ExtKeyUsage{}
	if !opts.omitClientAuthEKU {
		ekus = append(ekus, x509.ExtKeyUsageClientAuth)
	}

	subjectName := pkix.Name{CommonName: opts.commonName}
	if opts.organization != "" {
		subjectName.Organization = []string{opts.organization}
	}

	template := &x509.Certificate{
		SerialNumber:      big.NewInt(time.Now().UnixNano()),
		Subject:           subjectName,
		NotBefore:         notBefore,
		NotAfter:          notAfter,
		KeyUsage:          x509.KeyUsageDigitalSignature,
		ExtKeyUsage:       ekus,
		PolicyIdentifiers: opts.policyOIDs,
	}
	if opts.ocspServer != "" {
		template.OCSPServer = []string{opts.ocspServer}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.privateKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

// newTestOCSPResponderCertificate issues an OCSP-signing certificate under
// ca, used either as an AIA responder or as the pinned designated responder.
func newTestOCSPResponderCertificate(t *testing.T, ca *testCA, commonName string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageOCSPSigning},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.privateKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}
