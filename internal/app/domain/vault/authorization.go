package vault

import (
	"math/big"
	"time"

	"github.com/OpenCustody-Network/vault_layer/internal/crypto"
)

// Authorization is the ephemeral structured message a withdrawal presents.
// It is never persisted; only its digest and signature are checked at use
// time.
type Authorization struct {
	Requester Address
	Amount    *big.Int
	Deadline  time.Time
	Nonce     uint64
}

var authorizationTypeHash = crypto.Keccak256([]byte(
	"WithdrawalAuthorization(address requester,uint256 amount,uint256 deadline,uint256 nonce)",
))

// StructHash returns the canonical hash of the message fields in their fixed
// order, prefixed with the schema type tag.
func (a Authorization) StructHash() []byte {
	return crypto.Keccak256(
		authorizationTypeHash,
		crypto.EncodeAddress(a.Requester),
		crypto.EncodeUint(a.Amount),
		crypto.EncodeUint64(uint64(a.Deadline.Unix())),
		crypto.EncodeUint64(a.Nonce),
	)
}

// Digest produces the domain-bound digest that must be signed.
func (a Authorization) Digest(ctx SigningContext) []byte {
	return crypto.HashTypedData(ctx.Domain().Separator(), a.StructHash())
}
