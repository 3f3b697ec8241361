package storage

import (
	"context"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
)

// VaultTx is the staged view of vault state inside one atomic unit. The
// closure passed to Atomically mutates the staged state and appends events;
// nothing becomes durable unless the closure returns nil.
type VaultTx interface {
	// State returns the staged control state. Mutations apply on commit.
	State() *vault.State
	// AppendEvent stages an event record for the committing operation.
	AppendEvent(evt vault.Event)
}

// VaultStore persists the vault control state and its event history.
type VaultStore interface {
	// EnsureState returns the persisted state, writing the supplied initial
	// state first if none exists yet.
	EnsureState(ctx context.Context, initial vault.State) (vault.State, error)

	// State returns a copy of the current committed state.
	State(ctx context.Context) (vault.State, error)

	// Atomically runs fn against a staged copy of the state. If fn returns
	// nil every staged mutation and event is committed as one unit;
	// otherwise all of it is discarded.
	Atomically(ctx context.Context, fn func(tx VaultTx) error) error

	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]vault.Event, error)
}
