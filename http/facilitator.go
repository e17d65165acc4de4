package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/retry"
)

// Facilitator endpoint paths.
const (
	verifyPath    = "/verify"
	settlePath    = "/settle"
	supportedPath = "/supported"
)

// FacilitatorClient talks to an x402 facilitator, the service that
// verifies payment signatures and settles transfers on chain on behalf
// of a resource server.
type FacilitatorClient struct {
	// BaseURL is the facilitator root, e.g. "https://x402.org/facilitator".
	BaseURL string

	// Client is the underlying HTTP client.
	Client *http.Client

	// VerifyTimeout and SettleTimeout bound the respective calls.
	// Settlement waits for a chain transaction, so it gets far longer.
	VerifyTimeout time.Duration
	SettleTimeout time.Duration

	// Retry controls backoff for transient failures (network errors
	// and 5xx responses). 4xx responses are never retried.
	Retry retry.Config
}

// NewFacilitatorClient builds a client with the default timeouts:
// 5s verify, 60s settle.
func NewFacilitatorClient(baseURL string) *FacilitatorClient {
	return &FacilitatorClient{
		BaseURL:       baseURL,
		Client:        &http.Client{},
		VerifyTimeout: 5 * time.Second,
		SettleTimeout: 60 * time.Second,
		Retry:         retry.DefaultConfig,
	}
}

// FacilitatorRequest is the body of /verify and /settle calls.
type FacilitatorRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentPayload      *x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements *x402.PaymentRequirement `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator's verdict on a payment.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SupportedKind is one scheme/network pair a facilitator can process.
// Extra carries facilitator-specific parameters such as the Solana fee
// payer address.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Verify asks the facilitator to check a payment without settling it.
func (f *FacilitatorClient) Verify(ctx context.Context, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement) (*VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.VerifyTimeout)
	defer cancel()

	var verdict VerifyResponse
	if err := f.post(ctx, verifyPath, &FacilitatorRequest{
		X402Version:         x402.ProtocolVersion,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// Settle asks the facilitator to execute the payment on chain.
func (f *FacilitatorClient) Settle(ctx context.Context, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.SettleTimeout)
	defer cancel()

	var settlement x402.SettlementResponse
	if err := f.post(ctx, settlePath, &FacilitatorRequest{
		X402Version:         x402.ProtocolVersion,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}, &settlement); err != nil {
		return nil, err
	}
	return &settlement, nil
}

// Supported lists the scheme/network pairs the facilitator handles.
func (f *FacilitatorClient) Supported(ctx context.Context) ([]SupportedKind, error) {
	ctx, cancel := context.WithTimeout(ctx, f.VerifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+supportedPath, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Kinds []SupportedKind `json:"kinds"`
	}
	if err := f.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Kinds, nil
}

// EnrichRequirements fills in facilitator-specific parameters the
// resource server cannot know on its own, currently the Solana fee
// payer: SVM requirements without an Extra feePayer get it from the
// facilitator's matching supported kind. The input is not modified.
func (f *FacilitatorClient) EnrichRequirements(ctx context.Context, accepts []x402.PaymentRequirement) ([]x402.PaymentRequirement, error) {
	needsFeePayer := false
	for _, req := range accepts {
		if requirementNeedsFeePayer(req) {
			needsFeePayer = true
			break
		}
	}
	out := make([]x402.PaymentRequirement, len(accepts))
	copy(out, accepts)
	if !needsFeePayer {
		return out, nil
	}

	kinds, err := f.Supported(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if !requirementNeedsFeePayer(out[i]) {
			continue
		}
		for _, kind := range kinds {
			if kind.Scheme != out[i].Scheme || kind.Network != out[i].Network {
				continue
			}
			feePayer, ok := kind.Extra["feePayer"].(string)
			if !ok || feePayer == "" {
				continue
			}
			extra := make(map[string]interface{}, len(out[i].Extra)+1)
			for k, v := range out[i].Extra {
				extra[k] = v
			}
			extra["feePayer"] = feePayer
			out[i].Extra = extra
			break
		}
	}
	return out, nil
}

func requirementNeedsFeePayer(req x402.PaymentRequirement) bool {
	networkType, err := x402.ValidateNetwork(req.Network)
	if err != nil || networkType != x402.NetworkTypeSVM {
		return false
	}
	_, has := req.Extra["feePayer"].(string)
	return !has
}

// transientError marks failures worth retrying.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func (f *FacilitatorClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	return f.do(ctx, req, out)
}

func (f *FacilitatorClient) do(ctx context.Context, req *http.Request, out interface{}) error {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	_, err := retry.WithRetry(ctx, f.Retry, isTransient, func() (struct{}, error) {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return struct{}{}, err
			}
			attempt.Body = body
		}

		resp, err := client.Do(attempt)
		if err != nil {
			return struct{}{}, &transientError{err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, &transientError{err: err}
		}
		if resp.StatusCode >= 500 {
			return struct{}{}, &transientError{err: fmt.Errorf("facilitator returned %d: %s", resp.StatusCode, raw)}
		}
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("%w: facilitator returned %d: %s", x402.ErrVerificationFailed, resp.StatusCode, raw)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return struct{}{}, fmt.Errorf("facilitator response: %w", err)
		}
		return struct{}{}, nil
	})
	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
	}
	return err
}
