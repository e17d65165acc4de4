package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/validation"
)

// Config configures the payment middleware.
type Config struct {
	// FacilitatorURL is the facilitator to verify and settle through.
	// Ignored when Facilitator is set.
	FacilitatorURL string

	// Facilitator overrides the default client built from FacilitatorURL.
	Facilitator *FacilitatorClient

	// PaymentRequirements are the payment options this resource accepts.
	PaymentRequirements []x402.PaymentRequirement

	// VerifyOnly skips settlement; the payment is verified but never
	// executed. Useful for testing and free-with-signature flows.
	VerifyOnly bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewPaymentMiddleware returns net/http middleware that charges for
// access: requests without a valid X-PAYMENT header get a 402
// challenge; paid requests are verified with the facilitator, served,
// and settled before the response status is committed, so a settlement
// failure can still turn into a 402.
func NewPaymentMiddleware(config *Config) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	facilitator := config.Facilitator
	if facilitator == nil {
		facilitator = NewFacilitatorClient(config.FacilitatorURL)
	}

	// Best effort: serve the configured requirements unenriched when the
	// facilitator cannot be reached at startup.
	requirements, err := facilitator.EnrichRequirements(context.Background(), config.PaymentRequirements)
	if err != nil {
		logger.Warn("failed to enrich payment requirements from facilitator", "error", err)
		requirements = config.PaymentRequirements
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accepts := requirementsFor(requirements, r)

			if r.Header.Get(x402.PaymentHeader) == "" {
				SendPaymentRequired(w, "payment required", accepts)
				return
			}

			payment, err := ParsePaymentHeader(r)
			if err != nil {
				logger.Warn("rejected unparseable payment header", "error", err)
				SendPaymentRequired(w, "invalid payment header", accepts)
				return
			}
			if err := validation.ValidatePaymentPayload(*payment); err != nil {
				logger.Warn("rejected invalid payment payload", "error", err)
				SendPaymentRequired(w, "invalid payment payload", accepts)
				return
			}

			requirement := x402.FindMatchingRequirement(accepts, payment)
			if requirement == nil {
				logger.Warn("payment matches no requirement",
					"scheme", payment.Scheme, "network", payment.Network)
				SendPaymentRequired(w, "payment does not match any accepted requirement", accepts)
				return
			}

			verdict, err := facilitator.Verify(r.Context(), payment, requirement)
			if err != nil {
				logger.Error("facilitator verify failed", "error", err)
				http.Error(w, "payment verification unavailable", http.StatusServiceUnavailable)
				return
			}
			if !verdict.IsValid {
				logger.Info("payment rejected", "reason", verdict.InvalidReason, "payer", verdict.Payer)
				SendPaymentRequired(w, fmt.Sprintf("payment invalid: %s", verdict.InvalidReason), accepts)
				return
			}
			logger.Info("payment verified",
				"payer", verdict.Payer, "network", payment.Network, "amount", requirement.MaxAmountRequired)

			r = r.WithContext(withPayment(r.Context(), &PaymentInfo{
				Payment:     payment,
				Requirement: requirement,
				Payer:       verdict.Payer,
			}))

			if config.VerifyOnly {
				next.ServeHTTP(w, r)
				return
			}

			// Settlement runs when the handler commits a success status,
			// so the settlement report rides on the response headers and
			// a settlement failure can still become a 402.
			sw := &settlementWriter{
				ResponseWriter: w,
				settle: func() (*x402.SettlementResponse, error) {
					return facilitator.Settle(r.Context(), payment, requirement)
				},
				logger: logger,
			}
			next.ServeHTTP(sw, r)
			sw.finish()
		})
	}
}

// requirementsFor fills in the Resource field from the request when a
// requirement leaves it empty.
func requirementsFor(accepts []x402.PaymentRequirement, r *http.Request) []x402.PaymentRequirement {
	out := make([]x402.PaymentRequirement, len(accepts))
	copy(out, accepts)
	for i := range out {
		if out[i].Resource == "" {
			scheme := "https"
			if r.TLS == nil {
				scheme = "http"
			}
			out[i].Resource = fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
		}
	}
	return out
}

// settlementWriter defers the handler's status line until settlement
// completes.
type settlementWriter struct {
	http.ResponseWriter
	settle func() (*x402.SettlementResponse, error)
	logger *slog.Logger

	wroteHeader bool
	suppressed  bool
}

func (w *settlementWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	// Error responses are not charged; pass them through unsettled.
	if status >= 400 {
		w.ResponseWriter.WriteHeader(status)
		return
	}

	settlement, err := w.settle()
	if err == nil && settlement.Success {
		if hdrErr := AddSettlementHeader(w.ResponseWriter, settlement); hdrErr != nil {
			w.logger.Error("failed to encode settlement header", "error", hdrErr)
		}
		w.ResponseWriter.WriteHeader(status)
		return
	}

	reason := "settlement failed"
	if err != nil {
		w.logger.Error("settlement failed", "error", err)
	} else {
		reason = settlement.ErrorReason
		w.logger.Error("settlement rejected", "reason", reason)
	}

	// Replace the handler's response with a 402; its body writes are
	// swallowed from here on.
	w.suppressed = true
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Type", "application/json")
	w.ResponseWriter.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w.ResponseWriter).Encode(map[string]interface{}{
		"x402Version": x402.ProtocolVersion,
		"error":       fmt.Sprintf("payment settlement failed: %s", reason),
	})
}

func (w *settlementWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.suppressed {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

// finish settles even when the handler wrote nothing at all.
func (w *settlementWriter) finish() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}

func (w *settlementWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
