package x402

import (
	"errors"
	"fmt"
)

// Sentinel errors. All are usable with errors.Is, including through a
// wrapping PaymentError.
var (
	// ErrNoValidSigner indicates no configured signer can satisfy any of
	// the offered payment requirements.
	ErrNoValidSigner = errors.New("x402: no signer can satisfy payment requirements")

	// ErrAmountExceeded indicates the negotiated amount exceeds the
	// signer's per-call spending limit.
	ErrAmountExceeded = errors.New("x402: payment amount exceeds per-call limit")

	// ErrInvalidRequirements indicates a malformed or empty 402 challenge.
	ErrInvalidRequirements = errors.New("x402: invalid payment requirements")

	// ErrSigningFailed indicates the signing capability returned an error.
	ErrSigningFailed = errors.New("x402: payment signing failed")

	// ErrNetworkError indicates a transport-level failure during payment.
	ErrNetworkError = errors.New("x402: network error during payment")

	// ErrInvalidAmount indicates an amount that is not a positive decimal
	// integer string.
	ErrInvalidAmount = errors.New("x402: invalid amount")

	// ErrInvalidKey indicates unusable private key material.
	ErrInvalidKey = errors.New("x402: invalid private key")

	// ErrInvalidNetwork indicates an unknown or unsupported network.
	ErrInvalidNetwork = errors.New("x402: invalid or unsupported network")

	// ErrInvalidToken indicates a bad token configuration.
	ErrInvalidToken = errors.New("x402: invalid token configuration")

	// ErrInvalidKeystore indicates an unreadable or undecryptable keystore.
	ErrInvalidKeystore = errors.New("x402: invalid keystore file")

	// ErrInvalidMnemonic indicates a BIP-39 phrase that fails validation.
	ErrInvalidMnemonic = errors.New("x402: invalid mnemonic phrase")

	// ErrNoTokens indicates a signer was built without any token configs.
	ErrNoTokens = errors.New("x402: no tokens configured")

	// ErrFacilitatorUnavailable indicates the facilitator could not be
	// reached or kept failing after retries.
	ErrFacilitatorUnavailable = errors.New("x402: facilitator service unavailable")

	// ErrVerificationFailed indicates the facilitator rejected a payment.
	ErrVerificationFailed = errors.New("x402: payment verification failed")

	// ErrMalformedHeader indicates an X-PAYMENT header that is not valid
	// base64-encoded JSON.
	ErrMalformedHeader = errors.New("x402: malformed payment header")

	// ErrUnsupportedVersion indicates an x402Version this library does
	// not speak.
	ErrUnsupportedVersion = errors.New("x402: unsupported protocol version")

	// ErrUnsupportedScheme indicates a payment scheme this library cannot
	// produce or verify.
	ErrUnsupportedScheme = errors.New("x402: unsupported payment scheme")

	// ErrSettlementFailed indicates the facilitator failed to settle an
	// otherwise valid payment.
	ErrSettlementFailed = errors.New("x402: payment settlement failed")
)

// ErrorCode classifies a PaymentError for programmatic handling.
type ErrorCode string

const (
	ErrCodeNoValidSigner       ErrorCode = "NO_VALID_SIGNER"
	ErrCodeAmountExceeded      ErrorCode = "AMOUNT_EXCEEDED"
	ErrCodeInvalidRequirements ErrorCode = "INVALID_REQUIREMENTS"
	ErrCodeSigningFailed       ErrorCode = "SIGNING_FAILED"
	ErrCodeNetworkError        ErrorCode = "NETWORK_ERROR"
)

// PaymentError is a structured error carrying a machine-readable code,
// a human-readable message, the underlying cause, and free-form details.
type PaymentError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// NewPaymentError builds a PaymentError wrapping err (which may be nil).
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair and returns the error for chaining.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	e.Details[key] = value
	return e
}
