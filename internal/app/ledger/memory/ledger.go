// Package memory provides an in-memory asset ledger for tests and local
// development. One instance serves as either the native or the fungible
// ledger collaborator; balances are tracked per account with uint256
// semantics.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/ledger"
	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
)

// Ledger is an in-memory balance ledger.
type Ledger struct {
	mu       sync.Mutex
	balances map[vault.Address]*big.Int
}

var (
	_ ledger.TokenLedger  = (*Ledger)(nil)
	_ ledger.NativeLedger = (*Ledger)(nil)
)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[vault.Address]*big.Int)}
}

// Mint credits an account, creating it if needed. Used to seed balances in
// tests and local runs; the vault itself never mints.
func (l *Ledger) Mint(account vault.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

func (l *Ledger) credit(account vault.Address, amount *big.Int) {
	bal, ok := l.balances[account]
	if !ok {
		bal = new(big.Int)
		l.balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) debit(account vault.Address, amount *big.Int) error {
	bal, ok := l.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", account)
	}
	bal.Sub(bal, amount)
	return nil
}

func (l *Ledger) move(from, to vault.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("negative or nil transfer amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

func (l *Ledger) Transfer(_ context.Context, from, to vault.Address, amount *big.Int) error {
	return l.move(from, to, amount)
}

func (l *Ledger) TransferFrom(_ context.Context, from, to vault.Address, amount *big.Int) error {
	return l.move(from, to, amount)
}

func (l *Ledger) BalanceOf(_ context.Context, account vault.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[account]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}
