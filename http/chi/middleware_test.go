package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	xhttp "github.com/x402labs/x402-go/http"
)

func testConfig(facilitatorURL string) *xhttp.Config {
	return &xhttp.Config{
		FacilitatorURL: facilitatorURL,
		PaymentRequirements: []x402.PaymentRequirement{{
			Scheme:            "exact",
			Network:           "base-sepolia",
			MaxAmountRequired: "10000",
			Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
			MaxTimeoutSeconds: 60,
		}},
	}
}

func TestChiMiddlewareChallenges(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewPaymentMiddleware(testConfig("http://facilitator.invalid")))
	r.Get("/premium", func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without payment")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("challenge is not JSON: %v", err)
	}
	if len(challenge.Accepts) != 1 || challenge.Accepts[0].Network != "base-sepolia" {
		t.Errorf("challenge = %+v", challenge)
	}
}

func TestChiMiddlewareBypassesOptions(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewPaymentMiddleware(testConfig("http://facilitator.invalid")))
	r.Options("/premium", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/premium", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d; CORS preflight must not be charged", rec.Code)
	}
}

func TestChiMiddlewareServesPaidRequest(t *testing.T) {
	facilitator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(xhttp.VerifyResponse{IsValid: true, Payer: "0xpayer"})
		case "/settle":
			json.NewEncoder(w).Encode(x402.SettlementResponse{Success: true, Transaction: "0xtx", Network: "base-sepolia"})
		}
	}))
	defer facilitator.Close()

	r := chi.NewRouter()
	r.Use(NewPaymentMiddleware(testConfig(facilitator.URL)))
	r.Get("/premium", func(w http.ResponseWriter, req *http.Request) {
		info, ok := xhttp.PaymentFromContext(req.Context())
		if !ok || info.Payer != "0xpayer" {
			t.Errorf("payment context = %+v, %v", info, ok)
		}
		w.Write([]byte("ok"))
	})

	payment := &x402.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload: x402.EVMPayload{
			Signature: "0xsig",
			Authorization: x402.EVMAuthorization{
				From:  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
				To:    "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				Value: "10000",
			},
		},
	}
	header, err := encoding.EncodePayment(payment)
	if err != nil {
		t.Fatalf("encode payment: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(x402.PaymentHeader, header)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(x402.PaymentResponseHeader) == "" {
		t.Error("settlement header missing from paid response")
	}
}
