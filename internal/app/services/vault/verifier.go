package vault

import (
	"fmt"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/crypto"
)

// Verifier recovers the signing account of a withdrawal authorization. It
// only answers "who signed this"; whether that account may authorize a
// release is the withdrawal path's decision.
type Verifier struct {
	ctx vault.SigningContext
}

// NewVerifier builds a verifier bound to one execution context.
func NewVerifier(ctx vault.SigningContext) *Verifier {
	return &Verifier{ctx: ctx}
}

// Context returns the execution-context binding mixed into every digest.
func (v *Verifier) Context() vault.SigningContext { return v.ctx }

// Recover returns the account that signed the authorization. A structurally
// malformed signature fails with ErrInvalidSignature.
func (v *Verifier) Recover(auth vault.Authorization, signature []byte) (vault.Address, error) {
	digest := auth.Digest(v.ctx)
	pub, err := crypto.RecoverPubKey(digest, signature)
	if err != nil {
		return vault.ZeroAddress, fmt.Errorf("%w: %v", vault.ErrInvalidSignature, err)
	}
	return vault.Address(crypto.PubKeyAddress(pub)), nil
}
