package webeid

import (
	"encoding/asn1"
	"math/big"
)

// ecdsaSignature is the ASN.1 DER SEQUENCE { INTEGER r, INTEGER s } that
// crypto/ecdsa.VerifyASN1 and x509.Certificate.CheckSignature expect. Reusing
// encoding/asn1 for the encode direction avoids re-deriving ASN.1 INTEGER
// length-prefix and two's-complement rules by hand, the way smallstep-ocsp's
// request/response codec relies on encoding/asn1 + math/big throughout
// rather than hand-rolling TLV bytes.
type ecdsaSignature struct {
	R, S *big.Int
}

// transcodeECDSARawToDER converts the smart card's raw R‖S concatenation
// (spec §4.1) into an ASN.1 DER ECDSA signature.
func transcodeECDSARawToDER(raw []byte, curve int) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, wrapf(CodeInvalidSignatureFormat, nil, "raw ECDSA signature length %d is not an even number of bytes", len(raw))
	}
	half := len(raw) / 2
	if half != curve {
		return nil, wrapf(CodeInvalidSignatureFormat, nil, "raw ECDSA signature half-length %d does not match expected curve width %d", half, curve)
	}

	r := new(big.Int).SetBytes(raw[:half])
	s := new(big.Int).SetBytes(raw[half:])

	der, err := asn1.Marshal(ecdsaSignature{R: r, S: s})
	if err != nil {
		return nil, wrapf(CodeInvalidSignatureFormat, err, "failed to DER-encode ECDSA signature")
	}
	return der, nil
}
