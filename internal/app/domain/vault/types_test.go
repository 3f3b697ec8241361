package vault

import (
	"math/big"
	"testing"
)

func TestParseAddress(t *testing.T) {
	hexAddr := "0x00112233445566778899aabbccddeeff00112233"

	addr, err := ParseAddress(hexAddr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr.Hex() != hexAddr {
		t.Fatalf("roundtrip mismatch: %s", addr.Hex())
	}

	// Prefix is optional.
	bare, err := ParseAddress(hexAddr[2:])
	if err != nil {
		t.Fatalf("parse without prefix: %v", err)
	}
	if bare != addr {
		t.Fatal("prefixed and bare forms must parse identically")
	}

	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatal("short address must be rejected")
	}
	if _, err := ParseAddress("0xzz112233445566778899aabbccddeeff00112233"); err == nil {
		t.Fatal("non-hex address must be rejected")
	}
}

func TestAddressIsZero(t *testing.T) {
	if !ZeroAddress.IsZero() {
		t.Fatal("zero address must report IsZero")
	}
	addr, _ := ParseAddress("0x0000000000000000000000000000000000000001")
	if addr.IsZero() {
		t.Fatal("non-zero address must not report IsZero")
	}
}

func TestFeeConfigValidate(t *testing.T) {
	treasury, _ := ParseAddress("0x00112233445566778899aabbccddeeff00112233")

	cases := []struct {
		name    string
		cfg     FeeConfig
		wantErr bool
	}{
		{"zero rate no treasury", FeeConfig{}, false},
		{"rate with treasury", FeeConfig{RateBps: 250, Treasury: treasury}, false},
		{"full rate", FeeConfig{RateBps: 10000, Treasury: treasury}, false},
		{"rate above divisor", FeeConfig{RateBps: 10001, Treasury: treasury}, true},
		{"rate without treasury", FeeConfig{RateBps: 1}, true},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err=%v wantErr=%t", tc.name, err, tc.wantErr)
		}
	}
}

func TestFeeConfigSplit(t *testing.T) {
	cases := []struct {
		rateBps uint32
		amount  int64
		net     int64
		fee     int64
	}{
		{0, 1000, 1000, 0},
		{250, 10000, 9750, 250},
		{250, 100, 98, 2},   // floor: 100*250/10000 = 2.5 -> 2
		{250, 1, 1, 0},      // rounds to zero fee
		{10000, 77, 0, 77},  // full skim
		{1, 9999, 9999, 0},  // floor: 0.9999 -> 0
		{9999, 10000, 1, 9999},
	}
	for _, tc := range cases {
		cfg := FeeConfig{RateBps: tc.rateBps}
		net, fee := cfg.Split(big.NewInt(tc.amount))
		if net.Int64() != tc.net || fee.Int64() != tc.fee {
			t.Errorf("split(%d @ %d bps) = (%s, %s), want (%d, %d)",
				tc.amount, tc.rateBps, net, fee, tc.net, tc.fee)
		}
		sum := new(big.Int).Add(net, fee)
		if sum.Int64() != tc.amount {
			t.Errorf("split(%d @ %d bps): net+fee = %s, want exact conservation",
				tc.amount, tc.rateBps, sum)
		}
	}
}

func TestKnownCapability(t *testing.T) {
	for _, c := range []Capability{CapabilityAdminister, CapabilityAuthorizeWithdrawal, CapabilityManageTreasury} {
		if !KnownCapability(c) {
			t.Errorf("%s should be known", c)
		}
	}
	if KnownCapability(Capability("root")) {
		t.Error("undefined capability must not be known")
	}
}

func TestStateCloneIsIndependent(t *testing.T) {
	addr, _ := ParseAddress("0x00112233445566778899aabbccddeeff00112233")

	orig := NewState()
	orig.Grant(addr, CapabilityAdminister)
	orig.Nonce = 5

	clone := orig.Clone()
	clone.Grant(addr, CapabilityManageTreasury)
	clone.Revoke(addr, CapabilityAdminister)
	clone.Nonce = 9
	clone.Paused = true

	if !orig.Has(addr, CapabilityAdminister) {
		t.Fatal("mutating the clone leaked into the original capability set")
	}
	if orig.Has(addr, CapabilityManageTreasury) {
		t.Fatal("grant on clone must not appear in original")
	}
	if orig.Nonce != 5 || orig.Paused {
		t.Fatal("scalar fields leaked from clone to original")
	}
}
