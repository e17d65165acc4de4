// Package encoding implements the wire codecs for x402 header values:
// base64-encoded JSON for the X-PAYMENT and X-PAYMENT-RESPONSE headers,
// and plain JSON for the 402 challenge body. Monetary fields are JSON
// strings throughout, so encoding and decoding never touch their
// numeric value.
package encoding

import (
	"encoding/base64"
	"encoding/json"

	"github.com/x402labs/x402-go"
)

// EncodePayment serializes a payment payload for the X-PAYMENT header.
func EncodePayment(payment *x402.PaymentPayload) (string, error) {
	if payment == nil {
		return "", x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "payment payload is nil", nil)
	}
	data, err := json.Marshal(payment)
	if err != nil {
		return "", x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "failed to serialize payment payload", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePayment parses an X-PAYMENT header value.
func DecodePayment(header string) (*x402.PaymentPayload, error) {
	if header == "" {
		return nil, x402.ErrMalformedHeader
	}
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "payment header is not valid base64", x402.ErrMalformedHeader)
	}
	var payment x402.PaymentPayload
	if err := json.Unmarshal(data, &payment); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "payment header is not valid JSON", x402.ErrMalformedHeader)
	}
	return &payment, nil
}

// ParseRequirements parses a 402 challenge body. The body is plain JSON
// (not base64). A challenge with no accepts entries fails immediately.
func ParseRequirements(body []byte) (*x402.PaymentRequirementsResponse, error) {
	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "challenge body is not valid JSON", x402.ErrInvalidRequirements)
	}
	if len(challenge.Accepts) == 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "challenge offers no payment requirements", x402.ErrInvalidRequirements)
	}
	return &challenge, nil
}

// EncodeSettlement serializes a settlement report for the
// X-PAYMENT-RESPONSE header.
func EncodeSettlement(settlement *x402.SettlementResponse) (string, error) {
	data, err := json.Marshal(settlement)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettlement parses an X-PAYMENT-RESPONSE header value.
func DecodeSettlement(header string) (*x402.SettlementResponse, error) {
	if header == "" {
		return nil, x402.ErrMalformedHeader
	}
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, x402.ErrMalformedHeader
	}
	var settlement x402.SettlementResponse
	if err := json.Unmarshal(data, &settlement); err != nil {
		return nil, x402.ErrMalformedHeader
	}
	return &settlement, nil
}
