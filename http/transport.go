// Package http provides the payment-aware HTTP client for the x402
// protocol, plus the server-side middleware and facilitator client.
package http

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
)

// Transport is an http.RoundTripper that pays its way through 402
// responses. It sends the request through Base untouched; when the
// server answers 402 Payment Required it negotiates one of the offered
// requirements, signs a payment, and retries the request exactly once
// with the X-PAYMENT header set.
//
// The retry always goes through Base, never back through the wrapper,
// so a server that answers the paid request with another 402 gets that
// response returned to the caller rather than a second payment.
type Transport struct {
	// Base is the inner RoundTripper; http.DefaultTransport when nil.
	Base http.RoundTripper

	// Signers are the available payment signers.
	Signers []x402.Signer

	// Selector negotiates requirements against signers. Defaults to
	// DefaultPaymentSelector.
	Selector x402.PaymentSelector

	// Lifecycle callbacks; all optional.
	OnPaymentAttempt x402.PaymentCallback
	OnPaymentSuccess x402.PaymentCallback
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	selector := t.Selector
	if selector == nil {
		selector = &x402.DefaultPaymentSelector{}
	}

	first, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := base.RoundTrip(first)
	if err != nil {
		// Transport failures propagate unchanged.
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "failed to read challenge body", err)
	}
	challenge, err := encoding.ParseRequirements(body)
	if err != nil {
		return nil, err
	}

	payment, requirement, err := selector.SelectAndSign(challenge.Accepts, t.Signers)
	if err != nil {
		return nil, err
	}
	// The payload echoes the challenge's protocol version.
	if challenge.X402Version != 0 {
		payment.X402Version = challenge.X402Version
	}

	start := time.Now()
	t.emitAttempt(req, payment, requirement, start)

	header, err := encoding.EncodePayment(payment)
	if err != nil {
		err = x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to encode payment header", err)
		t.emitFailure(req, err, start)
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		t.emitFailure(req, err, start)
		return nil, err
	}
	retry.Header.Set(x402.PaymentHeader, header)

	paid, err := base.RoundTrip(retry)
	if err != nil {
		t.emitFailure(req, err, start)
		return nil, err
	}

	// The retried response is returned verbatim, including another 402.
	if settlement, err := encoding.DecodeSettlement(paid.Header.Get(x402.PaymentResponseHeader)); err == nil && settlement.Success {
		t.emitSuccess(req, requirement, settlement, start)
	}
	return paid, nil
}

func (t *Transport) emitAttempt(req *http.Request, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement, start time.Time) {
	if t.OnPaymentAttempt == nil || requirement == nil {
		return
	}
	t.OnPaymentAttempt(x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: start,
		URL:       req.URL.String(),
		Network:   payment.Network,
		Scheme:    payment.Scheme,
		Amount:    requirement.MaxAmountRequired,
		Asset:     requirement.Asset,
		Recipient: requirement.PayTo,
	})
}

func (t *Transport) emitSuccess(req *http.Request, requirement *x402.PaymentRequirement, settlement *x402.SettlementResponse, start time.Time) {
	if t.OnPaymentSuccess == nil {
		return
	}
	event := x402.PaymentEvent{
		Type:        x402.PaymentEventSuccess,
		Timestamp:   time.Now(),
		URL:         req.URL.String(),
		Transaction: settlement.Transaction,
		Payer:       settlement.Payer,
		Duration:    time.Since(start),
	}
	if requirement != nil {
		event.Network = requirement.Network
		event.Scheme = requirement.Scheme
		event.Amount = requirement.MaxAmountRequired
		event.Asset = requirement.Asset
		event.Recipient = requirement.PayTo
	}
	t.OnPaymentSuccess(event)
}

func (t *Transport) emitFailure(req *http.Request, err error, start time.Time) {
	if t.OnPaymentFailure == nil {
		return
	}
	t.OnPaymentFailure(x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		URL:       req.URL.String(),
		Error:     err,
		Duration:  time.Since(start),
	})
}

// cloneRequest copies the request for one network attempt. Bodies are
// single-read, so requests built with a GetBody (anything the stdlib
// constructed from a buffer, or RequestWithBody) get a fresh reader for
// each attempt.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// RequestWithBody clones a request with a replayable body. Request
// bodies are single-read; callers that POST through the payment
// transport should build their request from a byte slice so the retry
// can resend it.
func RequestWithBody(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return clone
}
