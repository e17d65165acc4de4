// Package gin adapts the payment flow to gin's handler chain. Unlike
// the stdlib middleware, gin handlers cannot intercept the response
// commit, so settlement happens after verification and before the
// protected handler runs.
package gin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/x402labs/x402-go"
	xhttp "github.com/x402labs/x402-go/http"
	"github.com/x402labs/x402-go/validation"
)

// ContextKey is where the middleware stores the *xhttp.PaymentInfo in
// the gin context.
const ContextKey = "x402_payment"

// NewPaymentMiddleware returns gin middleware that charges for access.
//
//	r := gin.Default()
//	r.Use(ginx402.NewPaymentMiddleware(&xhttp.Config{
//	    FacilitatorURL:      "https://x402.org/facilitator",
//	    PaymentRequirements: []x402.PaymentRequirement{requirement},
//	}))
//	r.GET("/premium", func(c *gin.Context) {
//	    info := c.MustGet(ginx402.ContextKey).(*xhttp.PaymentInfo)
//	    c.JSON(200, gin.H{"payer": info.Payer})
//	})
func NewPaymentMiddleware(config *xhttp.Config) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	facilitator := config.Facilitator
	if facilitator == nil {
		facilitator = xhttp.NewFacilitatorClient(config.FacilitatorURL)
	}

	requirements, err := facilitator.EnrichRequirements(context.Background(), config.PaymentRequirements)
	if err != nil {
		logger.Warn("failed to enrich payment requirements from facilitator", "error", err)
		requirements = config.PaymentRequirements
	}

	return func(c *gin.Context) {
		accepts := requirementsFor(requirements, c.Request)

		if c.GetHeader(x402.PaymentHeader) == "" {
			abortPaymentRequired(c, "payment required", accepts)
			return
		}

		payment, err := xhttp.ParsePaymentHeader(c.Request)
		if err != nil {
			logger.Warn("rejected unparseable payment header", "error", err)
			abortPaymentRequired(c, "invalid payment header", accepts)
			return
		}
		if err := validation.ValidatePaymentPayload(*payment); err != nil {
			logger.Warn("rejected invalid payment payload", "error", err)
			abortPaymentRequired(c, "invalid payment payload", accepts)
			return
		}

		requirement := x402.FindMatchingRequirement(accepts, payment)
		if requirement == nil {
			logger.Warn("payment matches no requirement",
				"scheme", payment.Scheme, "network", payment.Network)
			abortPaymentRequired(c, "payment does not match any accepted requirement", accepts)
			return
		}

		verdict, err := facilitator.Verify(c.Request.Context(), payment, requirement)
		if err != nil {
			logger.Error("facilitator verify failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"x402Version": x402.ProtocolVersion,
				"error":       "payment verification unavailable",
			})
			return
		}
		if !verdict.IsValid {
			logger.Info("payment rejected", "reason", verdict.InvalidReason, "payer", verdict.Payer)
			abortPaymentRequired(c, fmt.Sprintf("payment invalid: %s", verdict.InvalidReason), accepts)
			return
		}
		logger.Info("payment verified",
			"payer", verdict.Payer, "network", payment.Network, "amount", requirement.MaxAmountRequired)

		if !config.VerifyOnly {
			settlement, err := facilitator.Settle(c.Request.Context(), payment, requirement)
			if err != nil {
				logger.Error("settlement failed", "error", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"x402Version": x402.ProtocolVersion,
					"error":       "payment settlement failed",
				})
				return
			}
			if !settlement.Success {
				logger.Error("settlement rejected", "reason", settlement.ErrorReason)
				abortPaymentRequired(c,
					fmt.Sprintf("payment settlement failed: %s", settlement.ErrorReason), accepts)
				return
			}
			if err := xhttp.AddSettlementHeader(c.Writer, settlement); err != nil {
				logger.Error("failed to encode settlement header", "error", err)
			}
		}

		c.Set(ContextKey, &xhttp.PaymentInfo{
			Payment:     payment,
			Requirement: requirement,
			Payer:       verdict.Payer,
		})
		c.Next()
	}
}

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

func abortPaymentRequired(c *gin.Context, message string, accepts []x402.PaymentRequirement) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, x402.PaymentRequirementsResponse{
		X402Version: x402.ProtocolVersion,
		Error:       message,
		Accepts:     accepts,
	})
}
