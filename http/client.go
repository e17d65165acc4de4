package http

import (
	"net/http"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
)

// Client is an http.Client whose transport pays 402 challenges
// automatically.
type Client struct {
	*http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient builds a payment-aware HTTP client. With no options the
// client behaves like http.DefaultClient until a signer is attached.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		Client: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient uses an existing http.Client as the starting point;
// its transport becomes the inner transport of the payment wrapper.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.Client = client
	}
}

// WithSigner adds a payment signer.
func WithSigner(signer x402.Signer) ClientOption {
	return func(c *Client) {
		t := c.paymentTransport()
		t.Signers = append(t.Signers, signer)
	}
}

// WithSelector overrides the negotiation strategy.
func WithSelector(selector x402.PaymentSelector) ClientOption {
	return func(c *Client) {
		c.paymentTransport().Selector = selector
	}
}

// WithPaymentCallbacks attaches lifecycle callbacks. Any of the three
// may be nil.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402.PaymentCallback) ClientOption {
	return func(c *Client) {
		t := c.paymentTransport()
		t.OnPaymentAttempt = onAttempt
		t.OnPaymentSuccess = onSuccess
		t.OnPaymentFailure = onFailure
	}
}

// paymentTransport returns the payment wrapper, installing one around
// the current transport if needed.
func (c *Client) paymentTransport() *Transport {
	if t, ok := c.Client.Transport.(*Transport); ok {
		return t
	}
	t := &Transport{Base: c.Client.Transport}
	c.Client.Transport = t
	return t
}

// GetSettlement extracts the settlement report from a paid response,
// or nil when the response carries none.
func GetSettlement(resp *http.Response) *x402.SettlementResponse {
	header := resp.Header.Get(x402.PaymentResponseHeader)
	if header == "" {
		return nil
	}
	settlement, err := encoding.DecodeSettlement(header)
	if err != nil {
		return nil
	}
	return settlement
}
