package svm

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/x402labs/x402-go"
)

func newTestKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func solanaRequirement() *x402.PaymentRequirement {
	return &x402.PaymentRequirement{
		Scheme:            "exact",
		Network:           "solana",
		MaxAmountRequired: "1000000",
		Asset:             "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		PayTo:             "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Resource:          "https://api.example.com/data",
		MaxTimeoutSeconds: 60,
	}
}

func TestNewSigner(t *testing.T) {
	key := newTestKey(t)

	t.Run("defaults USDC mint for known network", func(t *testing.T) {
		s, err := NewSigner(WithPrivateKey(key.String()), WithNetwork("solana"))
		if err != nil {
			t.Fatalf("NewSigner() error = %v", err)
		}
		tokens := s.GetTokens()
		if len(tokens) != 1 || tokens[0].Address != x402.SolanaMainnet.USDCAddress {
			t.Errorf("tokens = %+v", tokens)
		}
		if s.Address() != key.PublicKey().String() {
			t.Errorf("Address() = %s", s.Address())
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, err := NewSigner(WithNetwork("solana")); !errors.Is(err, x402.ErrInvalidKey) {
			t.Errorf("error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("bad base58 key", func(t *testing.T) {
		if _, err := NewSigner(WithPrivateKey("not-base58-0OIl"), WithNetwork("solana")); !errors.Is(err, x402.ErrInvalidKey) {
			t.Errorf("error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("unknown network without token", func(t *testing.T) {
		if _, err := NewSigner(WithPrivateKey(key.String()), WithNetwork("solana-localnet")); !errors.Is(err, x402.ErrNoTokens) {
			t.Errorf("error = %v, want ErrNoTokens", err)
		}
	})
}

func TestSignerCanSign(t *testing.T) {
	s, err := NewSigner(WithPrivateKey(newTestKey(t).String()), WithNetwork("solana"))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	if !s.CanSign(solanaRequirement()) {
		t.Error("should sign USDC on solana")
	}

	wrongNetwork := solanaRequirement()
	wrongNetwork.Network = "solana-devnet"
	if s.CanSign(wrongNetwork) {
		t.Error("should not sign on another network")
	}

	wrongMint := solanaRequirement()
	wrongMint.Asset = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	if s.CanSign(wrongMint) {
		t.Error("should not sign an unknown mint")
	}
}

func TestSignerSign(t *testing.T) {
	key := newTestKey(t)
	s, err := NewSigner(WithPrivateKey(key.String()), WithNetwork("solana"))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	payload, err := s.Sign(solanaRequirement())
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if payload.Scheme != "exact" || payload.Network != "solana" {
		t.Errorf("envelope = %+v", payload)
	}

	svmPayload, ok := payload.Payload.(x402.SVMPayload)
	if !ok {
		t.Fatalf("payload type = %T", payload.Payload)
	}

	if _, err := base64.StdEncoding.DecodeString(svmPayload.Transaction); err != nil {
		t.Fatalf("transaction is not base64: %v", err)
	}
	decoded, err := solana.TransactionFromBase64(svmPayload.Transaction)
	if err != nil {
		t.Fatalf("transaction does not deserialize: %v", err)
	}
	if len(decoded.Signatures) == 0 {
		t.Error("transaction carries no signatures")
	}
	if len(decoded.Message.Instructions) != 1 {
		t.Errorf("instructions = %d, want 1", len(decoded.Message.Instructions))
	}
}

func TestSignerCeiling(t *testing.T) {
	s, err := NewSigner(
		WithPrivateKey(newTestKey(t).String()),
		WithNetwork("solana"),
		WithMaxAmountPerCall("100000"),
	)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	req := solanaRequirement()
	req.MaxAmountRequired = "200000"
	if _, err := s.Sign(req); !errors.Is(err, x402.ErrAmountExceeded) {
		t.Errorf("Sign() error = %v, want ErrAmountExceeded", err)
	}
}
