package x402

import "time"

// PaymentEventType classifies a payment lifecycle event.
type PaymentEventType string

const (
	// PaymentEventAttempt fires after a payment is signed, before the
	// retried request is sent.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess fires when the retried response carries a
	// successful settlement report.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure fires when the payment could not be delivered.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent describes one step of a payment attempt, delivered to
// the callbacks configured on the HTTP transport.
type PaymentEvent struct {
	Type      PaymentEventType
	Timestamp time.Time

	// URL is the protected resource being paid for.
	URL string

	// Network, Scheme, Amount, Asset, and Recipient come from the
	// negotiated requirement.
	Network   string
	Scheme    string
	Amount    string
	Asset     string
	Recipient string

	// Transaction and Payer come from the settlement report, when the
	// server returned one.
	Transaction string
	Payer       string

	// Error is set on failure events.
	Error error

	// Duration measures from signing to the retried response.
	Duration time.Duration
}

// PaymentCallback observes payment lifecycle events. Callbacks run
// synchronously on the request goroutine and must not block.
type PaymentCallback func(PaymentEvent)
