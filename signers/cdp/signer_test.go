package cdp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/x402labs/x402-go"
)

const testAccountAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// 65 bytes of r||s||v as hex.
var testSignature = "0x" + strings.Repeat("22", 64) + "1b"

// fakeCDP serves the account and signing endpoints the signer touches.
func fakeCDP(t *testing.T, signCalls *int, lastSignBody *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/platform/v2/evm/accounts":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"accounts": []Account{{
					ID:      "accounts/abc",
					Name:    "payments",
					Address: testAccountAddress,
					Network: "base-sepolia",
				}},
			})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/sign/typed-data"):
			*signCalls++
			if r.Header.Get("X-Wallet-Auth") == "" {
				t.Error("signing call without X-Wallet-Auth header")
			}
			if lastSignBody != nil {
				json.NewDecoder(r.Body).Decode(lastSignBody)
			}
			json.NewEncoder(w).Encode(map[string]string{"signature": testSignature})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func TestSignerSignsViaAPI(t *testing.T) {
	var signCalls int
	signBody := map[string]interface{}{}
	server := fakeCDP(t, &signCalls, &signBody)
	defer server.Close()

	signer, err := NewSigner("payments",
		WithClient(testClient(t, server.URL)),
		WithNetwork("base-sepolia"),
	)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	if signer.Address() != testAccountAddress {
		t.Errorf("Address() = %s", signer.Address())
	}

	payload, err := signer.Sign(&x402.PaymentRequirement{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: "10000",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		MaxTimeoutSeconds: 60,
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if signCalls != 1 {
		t.Errorf("sign calls = %d, want 1", signCalls)
	}

	evmPayload, err := payload.EVMPayloadData()
	if err != nil {
		t.Fatalf("EVMPayloadData() error = %v", err)
	}
	if evmPayload.Signature != testSignature {
		t.Errorf("Signature = %s", evmPayload.Signature)
	}
	if evmPayload.Authorization.From != testAccountAddress {
		t.Errorf("From = %s", evmPayload.Authorization.From)
	}
	if evmPayload.Authorization.Value != "10000" {
		t.Errorf("Value = %s", evmPayload.Authorization.Value)
	}

	// The EIP-712 document crosses the wire with a numeric chain ID.
	domain, _ := signBody["domain"].(map[string]interface{})
	if domain["chainId"] != float64(84532) {
		t.Errorf("chainId = %v (%T), want 84532", domain["chainId"], domain["chainId"])
	}
	if domain["verifyingContract"] != "0x036CbD53842c5426634e7929541eC2318f3dCF7e" {
		t.Errorf("verifyingContract = %v", domain["verifyingContract"])
	}
	if signBody["primaryType"] != "TransferWithAuthorization" {
		t.Errorf("primaryType = %v", signBody["primaryType"])
	}
}

func TestSignerEnforcesCeilingWithoutAPICall(t *testing.T) {
	var signCalls int
	server := fakeCDP(t, &signCalls, nil)
	defer server.Close()

	signer, err := NewSigner("payments",
		WithClient(testClient(t, server.URL)),
		WithNetwork("base-sepolia"),
		WithMaxAmountPerCall("5000"),
	)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	_, err = signer.Sign(&x402.PaymentRequirement{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: "10000",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
	})
	if err == nil {
		t.Fatal("Sign() succeeded above the per-call limit")
	}
	if signCalls != 0 {
		t.Errorf("sign calls = %d; the API must not be reached over the limit", signCalls)
	}
}

func TestSignerRejectsUnknownNetwork(t *testing.T) {
	_, err := NewSigner("payments",
		WithCredentials("organizations/org/apiKeys/key", testKeyPEM(t)),
		WithNetwork("polygon"),
	)
	if err == nil {
		t.Fatal("NewSigner() accepted a network CDP does not serve")
	}
}
