package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
)

func addr(b byte) vault.Address {
	var a vault.Address
	a[19] = b
	return a
}

func balance(t *testing.T, l *Ledger, account vault.Address) int64 {
	t.Helper()
	bal, err := l.BalanceOf(context.Background(), account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestTransferMovesFunds(t *testing.T) {
	l := New()
	alice, bob := addr(1), addr(2)
	l.Mint(alice, big.NewInt(100))

	if err := l.Transfer(context.Background(), alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, l, alice); got != 60 {
		t.Fatalf("sender balance = %d, want 60", got)
	}
	if got := balance(t, l, bob); got != 40 {
		t.Fatalf("recipient balance = %d, want 40", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := New()
	alice, bob := addr(1), addr(2)
	l.Mint(alice, big.NewInt(10))

	if err := l.Transfer(context.Background(), alice, bob, big.NewInt(11)); err == nil {
		t.Fatal("overdraw must fail")
	}
	// A failed transfer leaves both sides untouched.
	if got := balance(t, l, alice); got != 10 {
		t.Fatalf("sender balance = %d, want 10", got)
	}
	if got := balance(t, l, bob); got != 0 {
		t.Fatalf("recipient balance = %d, want 0", got)
	}
}

func TestTransferFromUnknownAccount(t *testing.T) {
	l := New()
	if err := l.TransferFrom(context.Background(), addr(9), addr(2), big.NewInt(1)); err == nil {
		t.Fatal("transfer from an account with no balance must fail")
	}
}

func TestTransferRejectsNilAndNegativeAmounts(t *testing.T) {
	l := New()
	alice, bob := addr(1), addr(2)
	l.Mint(alice, big.NewInt(10))

	if err := l.Transfer(context.Background(), alice, bob, nil); err == nil {
		t.Fatal("nil amount must fail")
	}
	if err := l.Transfer(context.Background(), alice, bob, big.NewInt(-1)); err == nil {
		t.Fatal("negative amount must fail")
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	l := New()
	alice := addr(1)
	l.Mint(alice, big.NewInt(10))

	bal, err := l.BalanceOf(context.Background(), alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	bal.SetInt64(999)

	if got := balance(t, l, alice); got != 10 {
		t.Fatalf("mutating a returned balance leaked into the ledger: %d", got)
	}
}
