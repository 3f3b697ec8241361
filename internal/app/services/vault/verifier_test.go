package vault

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/crypto"
)

func TestVerifierRecoversSigner(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := vault.Address(crypto.PubKeyAddress(key.PubKey()))

	ctx := testConfig(0).Context
	v := NewVerifier(ctx)

	auth := vault.Authorization{
		Requester: depositor,
		Amount:    big.NewInt(75),
		Deadline:  time.Now().Add(time.Hour),
		Nonce:     12,
	}
	sig, err := crypto.SignDigest(key, auth.Digest(ctx))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := v.Recover(auth, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != want {
		t.Fatalf("recovered %s, want %s", got, want)
	}
}

func TestVerifierRecoversDifferentSignerForMutatedMessage(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := vault.Address(crypto.PubKeyAddress(key.PubKey()))

	ctx := testConfig(0).Context
	v := NewVerifier(ctx)

	auth := vault.Authorization{
		Requester: depositor,
		Amount:    big.NewInt(75),
		Deadline:  time.Now().Add(time.Hour),
		Nonce:     12,
	}
	sig, err := crypto.SignDigest(key, auth.Digest(ctx))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Raising the amount changes the digest; the recovered account can no
	// longer be the original signer.
	auth.Amount = big.NewInt(75_000)
	got, err := v.Recover(auth, sig)
	if err == nil && got == signer {
		t.Fatal("tampered message must not recover the original signer")
	}
}

func TestVerifierRejectsMalformedSignature(t *testing.T) {
	v := NewVerifier(testConfig(0).Context)
	auth := vault.Authorization{
		Requester: depositor,
		Amount:    big.NewInt(75),
		Deadline:  time.Now().Add(time.Hour),
	}

	if _, err := v.Recover(auth, []byte("short")); !errors.Is(err, vault.ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}
