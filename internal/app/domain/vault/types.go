// Package vault defines the domain types for the pooled custody vault:
// account addresses, capabilities, fee configuration, signed withdrawal
// authorizations, and the event records emitted by committed operations.
package vault

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/OpenCustody-Network/vault_layer/internal/crypto"
)

// Address identifies an account. It carries no attributes beyond identity.
type Address [crypto.AddressLength]byte

// ZeroAddress is the all-zero address; it never holds capabilities.
var ZeroAddress Address

// ParseAddress decodes a hex address with or without a 0x prefix.
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != crypto.AddressLength {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// MarshalText implements encoding.TextMarshaler so addresses render as hex
// in JSON payloads and map keys.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Capability is a named permission an account may hold.
type Capability string

const (
	// CapabilityAdminister allows pausing, unpausing, and mutating
	// capability assignments.
	CapabilityAdminister Capability = "administer"
	// CapabilityAuthorizeWithdrawal marks accounts whose signatures release
	// funds from custody.
	CapabilityAuthorizeWithdrawal Capability = "authorize_withdrawal"
	// CapabilityManageTreasury allows sweeping native custody to treasury.
	CapabilityManageTreasury Capability = "manage_treasury"
)

// KnownCapability reports whether c is one of the defined capabilities.
func KnownCapability(c Capability) bool {
	switch c {
	case CapabilityAdminister, CapabilityAuthorizeWithdrawal, CapabilityManageTreasury:
		return true
	}
	return false
}

// FeeBasisPointsDivisor is the denominator for fee rates.
const FeeBasisPointsDivisor = 10000

// FeeConfig holds the deposit fee rate and its destination. Fixed for the
// life of a vault instance.
type FeeConfig struct {
	RateBps  uint32  `json:"rate_bps"`
	Treasury Address `json:"treasury"`
}

// Validate checks the fee configuration at construction time.
func (c FeeConfig) Validate() error {
	if c.RateBps > FeeBasisPointsDivisor {
		return fmt.Errorf("fee rate %d exceeds %d basis points", c.RateBps, FeeBasisPointsDivisor)
	}
	if c.RateBps > 0 && c.Treasury.IsZero() {
		return fmt.Errorf("fee rate set but treasury address is zero")
	}
	return nil
}

// Split divides amount into (net, fee) using integer floor division.
// net + fee == amount holds exactly for every non-negative amount.
func (c FeeConfig) Split(amount *big.Int) (net, fee *big.Int) {
	fee = new(big.Int).Mul(amount, big.NewInt(int64(c.RateBps)))
	fee.Div(fee, big.NewInt(FeeBasisPointsDivisor))
	net = new(big.Int).Sub(amount, fee)
	return net, fee
}

// SigningContext is the execution-context binding mixed into every withdrawal
// authorization digest. Exposed read-only so off-chain signers can construct
// matching messages.
type SigningContext struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	ChainID      *big.Int `json:"chain_id"`
	VaultAddress Address  `json:"vault_address"`
}

// Domain converts the context into the typed-data domain binding.
func (c SigningContext) Domain() crypto.Domain {
	return crypto.Domain{
		Name:              c.Name,
		Version:           c.Version,
		ChainID:           c.ChainID,
		VerifyingContract: c.VaultAddress,
	}
}
