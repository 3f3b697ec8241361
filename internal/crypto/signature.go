package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignatureLength is the byte length of a compact recoverable signature in
// wire form: r (32) || s (32) || v (1).
const SignatureLength = 65

// compactRecoveryBase is the offset the underlying library applies to the
// recovery code in its leading-header compact format.
const compactRecoveryBase = 27

// RecoverPubKey recovers the secp256k1 public key that produced the compact
// signature over the 32-byte digest. The signature uses the r||s||v layout
// with v either 0/1 or 27/28.
func RecoverPubKey(digest, sig []byte) (*secp256k1.PublicKey, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	v := sig[64]
	if v >= compactRecoveryBase {
		v -= compactRecoveryBase
	}
	if v > 3 {
		return nil, fmt.Errorf("invalid recovery id %d", sig[64])
	}

	// The library expects the recovery header first: [v+27, r, s].
	compact := make([]byte, SignatureLength)
	compact[0] = v + compactRecoveryBase
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("recover public key: %w", err)
	}
	return pub, nil
}

// SignDigest produces a compact recoverable signature over the 32-byte
// digest in r||s||v wire form with v in {27, 28}. Used by local tooling and
// tests; verification in the service path only ever recovers.
func SignDigest(priv *secp256k1.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	compact := secpecdsa.SignCompact(priv, digest, false)

	sig := make([]byte, SignatureLength)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0]
	return sig, nil
}
