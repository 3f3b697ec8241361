// Package ledger declares the external asset-ledger collaborators the vault
// depends on. Balance tracking, issuance, and transfer mechanics live behind
// these interfaces; the vault only moves funds through them and treats any
// error as a failed transfer.
package ledger

import (
	"context"
	"math/big"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
)

// TokenLedger is the fungible-asset ledger. Implementations must return a
// non-nil error for any transfer that did not fully succeed; the vault never
// treats silence as success.
type TokenLedger interface {
	// Transfer moves amount from the vault's own account to the recipient.
	Transfer(ctx context.Context, from, to vault.Address, amount *big.Int) error
	// TransferFrom moves amount between third-party accounts on the vault's
	// behalf (the pull primitive used by deposits).
	TransferFrom(ctx context.Context, from, to vault.Address, amount *big.Int) error
	// BalanceOf reports the ledger balance of an account.
	BalanceOf(ctx context.Context, account vault.Address) (*big.Int, error)
}

// NativeLedger is the native-asset ledger. Native deposits debit the caller
// atomically with the operation, so it only needs direct transfers.
type NativeLedger interface {
	Transfer(ctx context.Context, from, to vault.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account vault.Address) (*big.Int, error)
}
