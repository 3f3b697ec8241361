// Package postgres implements the VaultStore on PostgreSQL. The staged
// mutation discipline maps directly onto a database transaction: the state
// row is locked, the closure runs against a decoded copy, and the row plus
// event inserts commit or roll back as one unit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage"
)

// Store implements storage.VaultStore backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.VaultStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db), nil
}

// EnsureSchema creates the vault tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS vault_state (
	id           INT PRIMARY KEY CHECK (id = 1),
	paused       BOOLEAN     NOT NULL,
	nonce        BIGINT      NOT NULL,
	capabilities JSONB       NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vault_events (
	id         UUID PRIMARY KEY,
	kind       TEXT        NOT NULL,
	account    TEXT        NOT NULL,
	amount     TEXT        NOT NULL,
	fee        TEXT        NOT NULL DEFAULT '',
	nonce      BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS vault_events_created_at_idx ON vault_events (created_at DESC);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure vault schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle so sibling components can share the connection
// pool.
func (s *Store) DB() *sqlx.DB { return s.db }

type stateRow struct {
	Paused       bool            `db:"paused"`
	Nonce        int64           `db:"nonce"`
	Capabilities json.RawMessage `db:"capabilities"`
}

func (r stateRow) decode() (vault.State, error) {
	state := vault.NewState()
	state.Paused = r.Paused
	state.Nonce = uint64(r.Nonce)
	if len(r.Capabilities) > 0 {
		if err := json.Unmarshal(r.Capabilities, &state.Capabilities); err != nil {
			return vault.State{}, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	if state.Capabilities == nil {
		state.Capabilities = make(map[vault.Address]map[vault.Capability]bool)
	}
	return state, nil
}

func encodeCapabilities(state vault.State) (json.RawMessage, error) {
	raw, err := json.Marshal(state.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("encode capabilities: %w", err)
	}
	return raw, nil
}

func (s *Store) EnsureState(ctx context.Context, initial vault.State) (vault.State, error) {
	caps, err := encodeCapabilities(initial)
	if err != nil {
		return vault.State{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vault_state (id, paused, nonce, capabilities, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, initial.Paused, int64(initial.Nonce), caps, time.Now().UTC())
	if err != nil {
		return vault.State{}, fmt.Errorf("seed vault state: %w", err)
	}

	return s.State(ctx)
}

func (s *Store) State(ctx context.Context) (vault.State, error) {
	var row stateRow
	err := s.db.GetContext(ctx, &row, `SELECT paused, nonce, capabilities FROM vault_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.NewState(), nil
	}
	if err != nil {
		return vault.State{}, fmt.Errorf("load vault state: %w", err)
	}
	return row.decode()
}

type pgTx struct {
	staged vault.State
	events []vault.Event
}

func (t *pgTx) State() *vault.State         { return &t.staged }
func (t *pgTx) AppendEvent(evt vault.Event) { t.events = append(t.events, evt) }

func (s *Store) Atomically(ctx context.Context, fn func(tx storage.VaultTx) error) error {
	dbTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vault transaction: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck // no-op after commit

	var row stateRow
	err = dbTx.GetContext(ctx, &row, `SELECT paused, nonce, capabilities FROM vault_state WHERE id = 1 FOR UPDATE`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock vault state: %w", err)
	}

	staged := vault.NewState()
	if err == nil {
		if staged, err = row.decode(); err != nil {
			return err
		}
	}

	tx := &pgTx{staged: staged}
	if err := fn(tx); err != nil {
		return err
	}

	caps, err := encodeCapabilities(tx.staged)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO vault_state (id, paused, nonce, capabilities, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET paused = EXCLUDED.paused,
		    nonce = EXCLUDED.nonce,
		    capabilities = EXCLUDED.capabilities,
		    updated_at = EXCLUDED.updated_at
	`, tx.staged.Paused, int64(tx.staged.Nonce), caps, now)
	if err != nil {
		return fmt.Errorf("persist vault state: %w", err)
	}

	for _, evt := range tx.events {
		if evt.ID == "" {
			evt.ID = uuid.NewString()
		}
		if evt.CreatedAt.IsZero() {
			evt.CreatedAt = now
		}
		var nonce sql.NullInt64
		if evt.Nonce != nil {
			nonce = sql.NullInt64{Int64: int64(*evt.Nonce), Valid: true}
		}
		_, err = dbTx.ExecContext(ctx, `
			INSERT INTO vault_events (id, kind, account, amount, fee, nonce, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, evt.ID, string(evt.Kind), evt.Account.Hex(), evt.Amount, evt.Fee, nonce, evt.CreatedAt)
		if err != nil {
			return fmt.Errorf("persist vault event: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit vault transaction: %w", err)
	}
	return nil
}

type eventRow struct {
	ID        string        `db:"id"`
	Kind      string        `db:"kind"`
	Account   string        `db:"account"`
	Amount    string        `db:"amount"`
	Fee       string        `db:"fee"`
	Nonce     sql.NullInt64 `db:"nonce"`
	CreatedAt time.Time     `db:"created_at"`
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]vault.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, kind, account, amount, fee, nonce, created_at
		FROM vault_events
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list vault events: %w", err)
	}

	events := make([]vault.Event, 0, len(rows))
	for _, row := range rows {
		account, err := vault.ParseAddress(row.Account)
		if err != nil {
			return nil, err
		}
		evt := vault.Event{
			ID:        row.ID,
			Kind:      vault.EventKind(row.Kind),
			Account:   account,
			Amount:    row.Amount,
			Fee:       row.Fee,
			CreatedAt: row.CreatedAt,
		}
		if row.Nonce.Valid {
			n := uint64(row.Nonce.Int64)
			evt.Nonce = &n
		}
		events = append(events, evt)
	}
	return events, nil
}
