package evm

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testFrom = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testTo   = common.HexToAddress("0x209693Bc6afc0C5328bA36FaF03C514EF312287C")
)

func TestNewTransferAuthorizationWindow(t *testing.T) {
	tests := []struct {
		name           string
		timeoutSeconds int
		wantWindow     int64 // validBefore - validAfter
	}{
		{"explicit timeout", 60, 60 + clockSkewSeconds},
		{"longer timeout", 600, 600 + clockSkewSeconds},
		{"zero timeout uses default", 0, defaultTimeoutSeconds + clockSkewSeconds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now().Unix()
			auth, err := NewTransferAuthorization(testFrom, testTo, big.NewInt(10000), tt.timeoutSeconds)
			after := time.Now().Unix()
			if err != nil {
				t.Fatalf("NewTransferAuthorization() error = %v", err)
			}

			window := new(big.Int).Sub(auth.ValidBefore, auth.ValidAfter).Int64()
			if window != tt.wantWindow {
				t.Errorf("validBefore-validAfter = %d, want %d", window, tt.wantWindow)
			}

			va := auth.ValidAfter.Int64()
			if va < before-clockSkewSeconds || va > after-clockSkewSeconds {
				t.Errorf("validAfter = %d, want issuedAt-%d", va, clockSkewSeconds)
			}
			// The authorization must already be valid at issuance.
			if now := time.Now().Unix(); va > now || auth.ValidBefore.Int64() <= now {
				t.Errorf("window [%d, %d) does not contain now=%d", va, auth.ValidBefore.Int64(), now)
			}
		})
	}
}

func TestNewTransferAuthorizationRejectsBadValue(t *testing.T) {
	if _, err := NewTransferAuthorization(testFrom, testTo, nil, 60); err == nil {
		t.Error("nil value should be rejected")
	}
	if _, err := NewTransferAuthorization(testFrom, testTo, big.NewInt(-1), 60); err == nil {
		t.Error("negative value should be rejected")
	}
}

func TestNonceUniqueness(t *testing.T) {
	const n = 10000
	seen := make(map[[32]byte]struct{}, n)
	for i := 0; i < n; i++ {
		auth, err := NewTransferAuthorization(testFrom, testTo, big.NewInt(1), 60)
		if err != nil {
			t.Fatalf("NewTransferAuthorization() error = %v", err)
		}
		if _, dup := seen[auth.Nonce]; dup {
			t.Fatalf("duplicate nonce after %d authorizations", i)
		}
		seen[auth.Nonce] = struct{}{}
	}
}

func TestAuthorizationWireForm(t *testing.T) {
	value, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	auth, err := NewTransferAuthorization(testFrom, testTo, value, 60)
	if err != nil {
		t.Fatalf("NewTransferAuthorization() error = %v", err)
	}
	wire := auth.Authorization()

	if wire.From != testFrom.Hex() || wire.To != testTo.Hex() {
		t.Errorf("addresses = %s -> %s", wire.From, wire.To)
	}
	// Value must be the exact decimal string, no exponent or rounding.
	if wire.Value != "123456789012345678901234567890" {
		t.Errorf("Value = %q", wire.Value)
	}
	if !strings.HasPrefix(wire.Nonce, "0x") || len(wire.Nonce) != 66 {
		t.Errorf("Nonce = %q, want 0x-prefixed 32-byte hex", wire.Nonce)
	}
	for _, ts := range []string{wire.ValidAfter, wire.ValidBefore} {
		if _, ok := new(big.Int).SetString(ts, 10); !ok {
			t.Errorf("timestamp %q is not a decimal string", ts)
		}
	}
}

func TestTransferTypedData(t *testing.T) {
	auth, err := NewTransferAuthorization(testFrom, testTo, big.NewInt(10000), 60)
	if err != nil {
		t.Fatalf("NewTransferAuthorization() error = %v", err)
	}
	token := common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	data := TransferTypedData("USD Coin", "2", 8453, token, auth)

	if data.PrimaryType != "TransferWithAuthorization" {
		t.Errorf("PrimaryType = %q", data.PrimaryType)
	}
	if data.Domain.Name != "USD Coin" || data.Domain.Version != "2" {
		t.Errorf("domain = %s/%s", data.Domain.Name, data.Domain.Version)
	}
	if data.Domain.VerifyingContract != token.Hex() {
		t.Errorf("VerifyingContract = %q", data.Domain.VerifyingContract)
	}
	if (*big.Int)(data.Domain.ChainId).Int64() != 8453 {
		t.Errorf("ChainId = %v", data.Domain.ChainId)
	}

	// The digest must be computable, and stable for identical input.
	d1, err := TypedDataDigest(data)
	if err != nil {
		t.Fatalf("TypedDataDigest() error = %v", err)
	}
	d2, err := TypedDataDigest(data)
	if err != nil {
		t.Fatalf("TypedDataDigest() error = %v", err)
	}
	if string(d1) != string(d2) {
		t.Error("digest is not deterministic for identical input")
	}
	if len(d1) != 32 {
		t.Errorf("digest length = %d, want 32", len(d1))
	}

	// A different nonce must change the digest.
	auth2, _ := NewTransferAuthorization(testFrom, testTo, big.NewInt(10000), 60)
	auth2.ValidAfter = auth.ValidAfter
	auth2.ValidBefore = auth.ValidBefore
	d3, err := TypedDataDigest(TransferTypedData("USD Coin", "2", 8453, token, auth2))
	if err != nil {
		t.Fatalf("TypedDataDigest() error = %v", err)
	}
	if string(d1) == string(d3) {
		t.Error("digest did not change with the nonce")
	}
}

func TestSignTransferAuthorization(t *testing.T) {
	wallet := newTestWallet(t)
	auth, err := NewTransferAuthorization(wallet.Address(), testTo, big.NewInt(10000), 60)
	if err != nil {
		t.Fatalf("NewTransferAuthorization() error = %v", err)
	}
	data := TransferTypedData("USD Coin", "2", 8453, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), auth)

	sig, err := SignTransferAuthorization(wallet, data)
	if err != nil {
		t.Fatalf("SignTransferAuthorization() error = %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 132 {
		t.Fatalf("signature = %q, want 0x-prefixed 65-byte hex", sig)
	}
	// v must be 27 or 28.
	v := sig[len(sig)-2:]
	if v != "1b" && v != "1c" {
		t.Errorf("recovery id = %s, want 1b or 1c", v)
	}
}
