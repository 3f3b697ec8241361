package crypto

import (
	"fmt"
	"math/big"
)

// Domain binds a structured message to one vault instance and environment so
// a signature can never be replayed against another deployment.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract [AddressLength]byte
}

var domainTypeHash = Keccak256([]byte(
	"VaultDomain(string name,string version,uint256 chainId,address verifyingContract)",
))

// Separator returns the 32-byte domain separator for the binding.
func (d Domain) Separator() []byte {
	return Keccak256(
		domainTypeHash,
		Keccak256([]byte(d.Name)),
		Keccak256([]byte(d.Version)),
		EncodeUint(d.ChainID),
		EncodeAddress(d.VerifyingContract),
	)
}

// HashTypedData combines a struct hash with the domain separator under the
// standard 0x19 0x01 prefix to produce the digest that gets signed.
func HashTypedData(domainSeparator, structHash []byte) []byte {
	return Keccak256([]byte{0x19, 0x01}, domainSeparator, structHash)
}

// EncodeUint encodes a non-negative integer as a 32-byte big-endian word.
// Values wider than 256 bits are truncated to the low 256 bits, matching
// uint256 arithmetic.
func EncodeUint(v *big.Int) []byte {
	word := make([]byte, 32)
	if v == nil || v.Sign() <= 0 {
		return word
	}
	b := v.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(word[32-len(b):], b)
	return word
}

// EncodeAddress encodes an address as a left-padded 32-byte word.
func EncodeAddress(addr [AddressLength]byte) []byte {
	word := make([]byte, 32)
	copy(word[32-AddressLength:], addr[:])
	return word
}

// EncodeUint64 encodes a uint64 as a 32-byte big-endian word.
func EncodeUint64(v uint64) []byte {
	word := make([]byte, 32)
	for i := 0; i < 8; i++ {
		word[31-i] = byte(v >> (8 * i))
	}
	return word
}

func (d Domain) String() string {
	return fmt.Sprintf("%s/%s chain=%s", d.Name, d.Version, d.ChainID)
}
