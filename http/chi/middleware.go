// Package chi adapts the payment middleware to chi routers. Chi
// middleware uses the stdlib func(http.Handler) http.Handler shape, so
// the adapter only adds a CORS preflight bypass on top of the shared
// middleware.
package chi

import (
	"net/http"

	xhttp "github.com/x402labs/x402-go/http"
)

// NewPaymentMiddleware returns chi-compatible payment middleware.
// OPTIONS requests bypass payment so CORS preflights succeed.
//
//	r := chi.NewRouter()
//	r.Use(chix402.NewPaymentMiddleware(&xhttp.Config{
//	    FacilitatorURL:      "https://x402.org/facilitator",
//	    PaymentRequirements: []x402.PaymentRequirement{requirement},
//	}))
func NewPaymentMiddleware(config *xhttp.Config) func(http.Handler) http.Handler {
	paid := xhttp.NewPaymentMiddleware(config)
	return func(next http.Handler) http.Handler {
		charged := paid(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			charged.ServeHTTP(w, r)
		})
	}
}
