package webeid

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6960 §4.1.1 for CertID hashing
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

// oidOCSPNonce is id-pkix-ocsp-nonce, RFC 8954 / spec §4.5.
var oidOCSPNonce = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}

// certID mirrors RFC 6960's CertID SEQUENCE. golang.org/x/crypto/ocsp does
// not expose a way to compute or compare these four fields directly (its
// Response only surfaces SerialNumber and the hash algorithm), so this
// module computes and compares CertID itself, the same shape
// smallstep-ocsp's internal certID and sigex-kz-ncatos's ocspCertID use.
type certID struct {
	HashAlgorithm  pkix.AlgorithmIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

func (a certID) equal(b certID) bool {
	return a.HashAlgorithm.Algorithm.Equal(b.HashAlgorithm.Algorithm) &&
		bytesEqual(a.IssuerNameHash, b.IssuerNameHash) &&
		bytesEqual(a.IssuerKeyHash, b.IssuerKeyHash) &&
		a.SerialNumber != nil && b.SerialNumber != nil && a.SerialNumber.Cmp(b.SerialNumber) == 0
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var oidSHA1 = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

// computeCertID builds the CertID for subject, identified by issuer, using
// SHA-1 as RFC 6960 §4.1.1 mandates.
func computeCertID(subject, issuer *x509.Certificate) (certID, error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(issuer.RawSubjectPublicKeyInfo, &spki); err != nil {
		return certID{}, wrapf(CodeTokenParse, err, "unable to parse issuer public key info")
	}

	keyHash := sha1.Sum(spki.PublicKey.RightAlign()) //nolint:gosec
	nameHash := sha1.Sum(issuer.RawSubject)           //nolint:gosec

	return certID{
		HashAlgorithm:  pkix.AlgorithmIdentifier{Algorithm: oidSHA1, Parameters: asn1.RawValue{Tag: 5}},
		IssuerNameHash: nameHash[:],
		IssuerKeyHash:  keyHash[:],
		SerialNumber:   subject.SerialNumber,
	}, nil
}

// ocspASN1Request mirrors RFC 6960's OCSPRequest, extended with the optional
// nonce extension the request-only Request type in golang.org/x/crypto/ocsp
// cannot marshal.
type ocspASN1Request struct {
	TBSRequest tbsRequest
}

type tbsRequest struct {
	Version           int              `asn1:"explicit,tag:0,default:0,optional"`
	RequestList       []singleRequest
	RequestExtensions []pkix.Extension `asn1:"explicit,tag:2,optional"`
}

type singleRequest struct {
	ReqCert certID
}

// builtOCSPRequest is the result of building an OCSP request: the DER bytes
// to send, and (if a nonce was included) the nonce value to compare against
// the response later.
type builtOCSPRequest struct {
	der   []byte
	id    certID
	nonce []byte
}

// buildOCSPRequest implements spec §4.5: compute the CertID and, if the
// selected service supports it, attach a fresh 256-bit nonce extension.
func buildOCSPRequest(subject, issuer *x509.Certificate, svc *ocspService) (*builtOCSPRequest, error) {
	id, err := computeCertID(subject, issuer)
	if err != nil {
		return nil, err
	}

	tbs := tbsRequest{
		RequestList: []singleRequest{{ReqCert: id}},
	}

	var nonce []byte
	if svc.supportsNonce {
		nonce = make([]byte, 32)
		if _, err := rand.Read(nonce); err != nil {
			return nil, wrapf(CodeOCSPResponseInvalid, err, "failed to generate OCSP nonce")
		}
		encodedNonce, err := asn1.Marshal(nonce)
		if err != nil {
			return nil, wrapf(CodeOCSPResponseInvalid, err, "failed to encode OCSP nonce extension")
		}
		tbs.RequestExtensions = []pkix.Extension{{Id: oidOCSPNonce, Value: encodedNonce}}
	}

	der, err := asn1.Marshal(ocspASN1Request{TBSRequest: tbs})
	if err != nil {
		return nil, wrapf(CodeOCSPResponseInvalid, err, "failed to encode OCSP request")
	}

	return &builtOCSPRequest{der: der, id: id, nonce: nonce}, nil
}
