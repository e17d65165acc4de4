package cdp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/x402labs/x402-go/retry"
)

// APIError is a non-2xx response from the CDP API.
type APIError struct {
	StatusCode int
	RequestID  string
	Body       string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("cdp: API error %d: %s (request %s)", e.StatusCode, e.Body, e.RequestID)
	}
	return fmt.Sprintf("cdp: API error %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying: rate limits
// and server errors are, everything else in the 4xx range is not.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is an authenticated HTTP client for the CDP REST API with
// retry on transient failures. Safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Auth       *Auth
	Retry      retry.Config
}

// NewClient builds a client against the production CDP API.
func NewClient(auth *Auth) *Client {
	return &Client{
		BaseURL: "https://" + apiHost,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Auth:  auth,
		Retry: retry.DefaultConfig,
	}
}

func isTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// Network-level failures never produce an APIError; retry those too.
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}

// do executes one authenticated API call, retrying transient failures.
// walletAuth adds the X-Wallet-Auth header required by signing
// endpoints.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, walletAuth bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cdp: marshal request: %w", err)
		}
	}

	_, err := retry.WithRetry(ctx, c.Retry, isTemporary, func() (struct{}, error) {
		return struct{}{}, c.doOnce(ctx, method, path, payload, out, walletAuth)
	})
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out interface{}, walletAuth bool) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cdp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	bearer, err := c.Auth.BearerToken(method, path)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	if walletAuth {
		walletToken, err := c.Auth.WalletAuthToken(method, path, payload)
		if err != nil {
			return err
		}
		req.Header.Set("X-Wallet-Auth", walletToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("cdp: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cdp: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Request-ID"),
			Body:       string(raw),
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("cdp: decode response: %w", err)
		}
	}
	return nil
}
