package webeid

import (
	"crypto"
	"crypto/elliptic"
)

// signatureScheme identifies which verification primitive an algorithm uses.
type signatureScheme int

const (
	schemeECDSA signatureScheme = iota
	schemeRSAPSS
	schemeRSAPKCS1v15
)

// algorithmInfo maps a JWS alg identifier to its hash and scheme, per
// spec §4.1.
type algorithmInfo struct {
	hash   crypto.Hash
	scheme signatureScheme
	// curve is only meaningful for ECDSA algorithms; it gives the expected
	// raw R/S half-width used to split the smart card's R‖S signature.
	curve elliptic.Curve
}

var algorithmTable = map[string]algorithmInfo{
	"ES256": {hash: crypto.SHA256, scheme: schemeECDSA, curve: elliptic.P256()},
	"ES384": {hash: crypto.SHA384, scheme: schemeECDSA, curve: elliptic.P384()},
	"ES512": {hash: crypto.SHA512, scheme: schemeECDSA, curve: elliptic.P521()},
	"PS256": {hash: crypto.SHA256, scheme: schemeRSAPSS},
	"PS384": {hash: crypto.SHA384, scheme: schemeRSAPSS},
	"PS512": {hash: crypto.SHA512, scheme: schemeRSAPSS},
	"RS256": {hash: crypto.SHA256, scheme: schemeRSAPKCS1v15},
	"RS384": {hash: crypto.SHA384, scheme: schemeRSAPKCS1v15},
	"RS512": {hash: crypto.SHA512, scheme: schemeRSAPKCS1v15},
}

func lookupAlgorithm(alg string) (algorithmInfo, error) {
	info, ok := algorithmTable[alg]
	if !ok {
		return algorithmInfo{}, wrapf(CodeUnsupportedAlgorithm, nil, "unsupported algorithm %q", alg)
	}
	return info, nil
}

// curveFieldBytes returns the fixed-width byte length of a curve's R/S
// integers, per spec §4.1 ("32/48/66 bytes for P-256/P-384/P-521").
func curveFieldBytes(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}
