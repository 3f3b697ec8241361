// Package crypto provides the hashing and signature primitives used by the
// vault layer: Keccak-256 digests, address derivation, and compact
// secp256k1 signature recovery.
package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

// AddressLength is the byte length of an account address.
const AddressLength = 20

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// PubKeyAddress derives the 20-byte account address from a secp256k1 public
// key: the last 20 bytes of the Keccak-256 digest of the uncompressed key
// without its 0x04 prefix.
func PubKeyAddress(pub *secp256k1.PublicKey) [AddressLength]byte {
	var addr [AddressLength]byte
	digest := Keccak256(pub.SerializeUncompressed()[1:])
	copy(addr[:], digest[len(digest)-AddressLength:])
	return addr
}
