package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage"
)

func testAccount(t *testing.T) vault.Address {
	t.Helper()
	addr, err := vault.ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	return addr
}

func TestEnsureStateSeedsOnce(t *testing.T) {
	store := New()
	ctx := context.Background()
	account := testAccount(t)

	initial := vault.NewState()
	initial.Grant(account, vault.CapabilityAdminister)

	got, err := store.EnsureState(ctx, initial)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !got.Has(account, vault.CapabilityAdminister) {
		t.Fatal("seed grants missing")
	}

	// A second seed with different grants must not overwrite existing state.
	second := vault.NewState()
	second.Grant(account, vault.CapabilityManageTreasury)
	got, err = store.EnsureState(ctx, second)
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if got.Has(account, vault.CapabilityManageTreasury) || !got.Has(account, vault.CapabilityAdminister) {
		t.Fatal("re-seeding must be a no-op once state exists")
	}
}

func TestAtomicallyCommits(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Atomically(ctx, func(tx storage.VaultTx) error {
		tx.State().Nonce = 7
		tx.State().Paused = true
		tx.AppendEvent(vault.Event{Kind: vault.EventDepositNative, Amount: "100", Fee: "0"})
		return nil
	})
	if err != nil {
		t.Fatalf("atomically: %v", err)
	}

	state, err := store.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Nonce != 7 || !state.Paused {
		t.Fatalf("committed state not visible: %+v", state)
	}

	events, err := store.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ID == "" || events[0].CreatedAt.IsZero() {
		t.Fatal("commit must assign event identity and timestamp")
	}
}

func TestAtomicallyDiscardsOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Atomically(ctx, func(tx storage.VaultTx) error {
		tx.State().Nonce = 42
		tx.AppendEvent(vault.Event{Kind: vault.EventWithdrawal, Amount: "1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped boom", err)
	}

	state, err := store.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Nonce != 0 {
		t.Fatalf("failed transaction leaked state: nonce=%d", state.Nonce)
	}
	events, err := store.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed transaction leaked %d events", len(events))
	}
}

func TestStateReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	account := testAccount(t)

	state, err := store.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	state.Grant(account, vault.CapabilityAdminister)
	state.Nonce = 99

	fresh, err := store.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if fresh.Nonce != 0 || fresh.Has(account, vault.CapabilityAdminister) {
		t.Fatal("mutating a returned snapshot must not affect the store")
	}
}

func TestListEventsNewestFirstWithLimit(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, amount := range []string{"1", "2", "3"} {
		err := store.Atomically(ctx, func(tx storage.VaultTx) error {
			tx.AppendEvent(vault.Event{Kind: vault.EventDepositNative, Amount: amount})
			return nil
		})
		if err != nil {
			t.Fatalf("append %s: %v", amount, err)
		}
	}

	events, err := store.ListEvents(ctx, 2)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Amount != "3" || events[1].Amount != "2" {
		t.Fatalf("unexpected order: %s, %s", events[0].Amount, events[1].Amount)
	}
}
