package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
)

// PaymentInfo carries the verified payment through the request context
// to downstream handlers.
type PaymentInfo struct {
	Payment     *x402.PaymentPayload
	Requirement *x402.PaymentRequirement

	// Payer is the paying address as reported by the facilitator.
	Payer string
}

type paymentContextKey struct{}

// PaymentFromContext returns the verified payment attached by the
// middleware, if any.
func PaymentFromContext(ctx context.Context) (*PaymentInfo, bool) {
	info, ok := ctx.Value(paymentContextKey{}).(*PaymentInfo)
	return info, ok
}

func withPayment(ctx context.Context, info *PaymentInfo) context.Context {
	return context.WithValue(ctx, paymentContextKey{}, info)
}

// ParsePaymentHeader extracts and decodes the X-PAYMENT header of an
// inbound request.
func ParsePaymentHeader(r *http.Request) (*x402.PaymentPayload, error) {
	header := r.Header.Get(x402.PaymentHeader)
	if header == "" {
		return nil, x402.ErrMalformedHeader
	}
	payment, err := encoding.DecodePayment(header)
	if err != nil {
		return nil, err
	}
	if payment.X402Version != x402.ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, payment.X402Version)
	}
	return payment, nil
}

// SendPaymentRequired writes a 402 challenge with the given accepts
// list.
func SendPaymentRequired(w http.ResponseWriter, message string, accepts []x402.PaymentRequirement) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(x402.PaymentRequirementsResponse{
		X402Version: x402.ProtocolVersion,
		Error:       message,
		Accepts:     accepts,
	})
}

// AddSettlementHeader attaches an encoded settlement report to the
// response.
func AddSettlementHeader(w http.ResponseWriter, settlement *x402.SettlementResponse) error {
	header, err := encoding.EncodeSettlement(settlement)
	if err != nil {
		return err
	}
	w.Header().Set(x402.PaymentResponseHeader, header)
	return nil
}
