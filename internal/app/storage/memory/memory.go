// Package memory provides an in-memory VaultStore. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage"
)

// Store is an in-memory implementation of storage.VaultStore.
type Store struct {
	mu     sync.Mutex
	state  vault.State
	seeded bool
	events []vault.Event
}

var _ storage.VaultStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{state: vault.NewState()}
}

func (s *Store) EnsureState(_ context.Context, initial vault.State) (vault.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		s.state = initial.Clone()
		s.seeded = true
	}
	return s.state.Clone(), nil
}

func (s *Store) State(_ context.Context) (vault.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

type memTx struct {
	staged vault.State
	events []vault.Event
}

func (t *memTx) State() *vault.State         { return &t.staged }
func (t *memTx) AppendEvent(evt vault.Event) { t.events = append(t.events, evt) }

func (s *Store) Atomically(_ context.Context, fn func(tx storage.VaultTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{staged: s.state.Clone()}
	if err := fn(tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range tx.events {
		if tx.events[i].ID == "" {
			tx.events[i].ID = uuid.NewString()
		}
		if tx.events[i].CreatedAt.IsZero() {
			tx.events[i].CreatedAt = now
		}
	}

	s.state = tx.staged
	s.seeded = true
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) ListEvents(_ context.Context, limit int) ([]vault.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]vault.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
