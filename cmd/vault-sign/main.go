// Command vault-sign produces withdrawal authorizations off-process. It
// signs the typed authorization message for a given requester, amount,
// deadline, and nonce, printing the signature the withdraw endpoint expects.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/crypto"
)

func main() {
	var (
		keyHex    = flag.String("key", "", "signer private key (hex); generated when omitted")
		requester = flag.String("requester", "", "withdrawing account address")
		amount    = flag.String("amount", "", "withdrawal amount (decimal)")
		deadline  = flag.Int64("deadline", 0, "authorization deadline (unix seconds)")
		nonce     = flag.Uint64("nonce", 0, "expected vault nonce")
		name      = flag.String("name", "PooledVault", "vault instance name")
		version   = flag.String("version", "1", "vault version string")
		chainID   = flag.Uint64("chain-id", 1, "environment identifier")
		vaultHex  = flag.String("vault", "", "vault instance address")
	)
	flag.Parse()

	if err := run(*keyHex, *requester, *amount, *deadline, *nonce, *name, *version, *chainID, *vaultHex); err != nil {
		fmt.Fprintf(os.Stderr, "vault-sign: %v\n", err)
		os.Exit(1)
	}
}

func run(keyHex, requesterHex, amountRaw string, deadline int64, nonce uint64, name, version string, chainID uint64, vaultHex string) error {
	var priv *secp256k1.PrivateKey
	if keyHex == "" {
		generated, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		priv = generated
		fmt.Printf("private_key: %x\n", priv.Serialize())
	} else {
		raw, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			return fmt.Errorf("decode key: %w", err)
		}
		priv = secp256k1.PrivKeyFromBytes(raw)
	}

	signer := vault.Address(crypto.PubKeyAddress(priv.PubKey()))
	fmt.Printf("signer: %s\n", signer)

	if requesterHex == "" || amountRaw == "" || vaultHex == "" {
		return fmt.Errorf("requester, amount, and vault address are required to sign")
	}

	requester, err := vault.ParseAddress(requesterHex)
	if err != nil {
		return err
	}
	vaultAddr, err := vault.ParseAddress(vaultHex)
	if err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(amountRaw, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", amountRaw)
	}
	if deadline == 0 {
		deadline = time.Now().Add(time.Hour).Unix()
	}

	auth := vault.Authorization{
		Requester: requester,
		Amount:    amount,
		Deadline:  time.Unix(deadline, 0),
		Nonce:     nonce,
	}
	digest := auth.Digest(vault.SigningContext{
		Name:         name,
		Version:      version,
		ChainID:      new(big.Int).SetUint64(chainID),
		VaultAddress: vaultAddr,
	})

	sig, err := crypto.SignDigest(priv, digest)
	if err != nil {
		return err
	}

	fmt.Printf("deadline: %d\n", deadline)
	fmt.Printf("signature: 0x%x\n", sig)
	return nil
}
