package webeid

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
)

// verifyTokenSignature implements spec §4.7: verify that signature was
// produced over H(origin)‖H(nonce) by the subject's private key, for the
// algorithm named by alg.
func verifyTokenSignature(alg string, signature []byte, subjectPublicKey interface{}, origin string, nonce []byte) error {
	info, err := lookupAlgorithm(alg)
	if err != nil {
		return err
	}

	der := signature
	if info.scheme == schemeECDSA {
		der, err = transcodeECDSARawToDER(signature, curveFieldBytes(info.curve))
		if err != nil {
			return err
		}
	}

	signedBlob := buildSignedPayload(info.hash, origin, nonce)

	switch info.scheme {
	case schemeECDSA:
		pub, ok := subjectPublicKey.(*ecdsa.PublicKey)
		if !ok {
			return wrapf(CodeTokenSignatureInvalid, nil, "certificate public key is not an ECDSA key")
		}
		if !ecdsa.VerifyASN1(pub, hashBytes(info.hash, signedBlob), der) {
			return wrapf(CodeTokenSignatureInvalid, nil, "ECDSA token signature verification failed")
		}
	case schemeRSAPSS:
		pub, ok := subjectPublicKey.(*rsa.PublicKey)
		if !ok {
			return wrapf(CodeTokenSignatureInvalid, nil, "certificate public key is not an RSA key")
		}
		opts := &rsa.PSSOptions{SaltLength: info.hash.Size(), Hash: info.hash}
		if err := rsa.VerifyPSS(pub, info.hash, hashBytes(info.hash, signedBlob), der, opts); err != nil {
			return wrapf(CodeTokenSignatureInvalid, err, "RSA-PSS token signature verification failed")
		}
	case schemeRSAPKCS1v15:
		pub, ok := subjectPublicKey.(*rsa.PublicKey)
		if !ok {
			return wrapf(CodeTokenSignatureInvalid, nil, "certificate public key is not an RSA key")
		}
		if err := rsa.VerifyPKCS1v15(pub, info.hash, hashBytes(info.hash, signedBlob), der); err != nil {
			return wrapf(CodeTokenSignatureInvalid, err, "RSA PKCS#1 v1.5 token signature verification failed")
		}
	}

	return nil
}

// buildSignedPayload computes H(origin)‖H(nonce) with no separator, using
// hash h for both digests, per spec §4.7 step 3.
func buildSignedPayload(h crypto.Hash, origin string, nonce []byte) []byte {
	originDigest := hashBytes(h, []byte(origin))
	nonceDigest := hashBytes(h, nonce)
	out := make([]byte, 0, len(originDigest)+len(nonceDigest))
	out = append(out, originDigest...)
	out = append(out, nonceDigest...)
	return out
}

func hashBytes(h crypto.Hash, data []byte) []byte {
	hasher := h.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// subjectPublicKey extracts the public key to verify signatures against,
// failing if the certificate carries an unsupported key type.
func subjectPublicKey(cert *x509.Certificate) (interface{}, error) {
	switch cert.PublicKey.(type) {
	case *ecdsa.PublicKey, *rsa.PublicKey:
		return cert.PublicKey, nil
	default:
		return nil, wrapf(CodeTokenSignatureInvalid, nil, "certificate public key type is not supported")
	}
}
