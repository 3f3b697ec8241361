// Package postgres implements a durable asset ledger on PostgreSQL. It is a
// development stand-in for the real external ledger: balances live in a
// single table and each transfer debits and credits inside one database
// transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/jmoiron/sqlx"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/ledger"
	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
)

// Ledger is an sqlx-backed asset ledger keyed by table name, so one database
// can host separate native and token ledgers.
type Ledger struct {
	db    *sqlx.DB
	table string
}

var (
	_ ledger.TokenLedger  = (*Ledger)(nil)
	_ ledger.NativeLedger = (*Ledger)(nil)
)

// New creates a ledger over the given table.
func New(db *sqlx.DB, table string) *Ledger {
	return &Ledger{db: db, table: table}
}

// EnsureSchema creates the balance table when it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	account TEXT PRIMARY KEY,
	balance NUMERIC(78, 0) NOT NULL CHECK (balance >= 0)
)`, l.table)
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// Mint credits an account outside of any transfer. Development seeding only.
func (l *Ledger) Mint(ctx context.Context, account vault.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("negative or nil mint amount")
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (account, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = %s.balance + EXCLUDED.balance
	`, l.table, l.table)
	if _, err := l.db.ExecContext(ctx, query, account.Hex(), amount.String()); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	return nil
}

func (l *Ledger) move(ctx context.Context, from, to vault.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("negative or nil transfer amount")
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var balance string
	err = tx.GetContext(ctx, &balance,
		fmt.Sprintf(`SELECT balance::text FROM %s WHERE account = $1 FOR UPDATE`, l.table), from.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("insufficient balance for %s", from)
	}
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}

	current, ok := new(big.Int).SetString(balance, 10)
	if !ok {
		return fmt.Errorf("corrupt balance %q for %s", balance, from)
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", from)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET balance = balance - $2::numeric WHERE account = $1`, l.table),
		from.Hex(), amount.String())
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (account, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = %s.balance + EXCLUDED.balance
	`, l.table, l.table), to.Hex(), amount.String())
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

func (l *Ledger) Transfer(ctx context.Context, from, to vault.Address, amount *big.Int) error {
	return l.move(ctx, from, to, amount)
}

func (l *Ledger) TransferFrom(ctx context.Context, from, to vault.Address, amount *big.Int) error {
	return l.move(ctx, from, to, amount)
}

func (l *Ledger) BalanceOf(ctx context.Context, account vault.Address) (*big.Int, error) {
	var balance string
	err := l.db.GetContext(ctx, &balance,
		fmt.Sprintf(`SELECT balance::text FROM %s WHERE account = $1`, l.table), account.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	out, ok := new(big.Int).SetString(balance, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance %q for %s", balance, account)
	}
	return out, nil
}
