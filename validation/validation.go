// Package validation checks the structural validity of x402 protocol
// values: amounts, addresses, payment requirements, and payment
// payloads. Servers validate inbound payments with it; clients validate
// requirements before signing.
package validation

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/x402labs/x402-go"
)

var (
	evmAddressRegex    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// ValidateAmount checks that amount is a positive decimal integer
// string. Amounts are parsed with big.Int so arbitrarily large values
// validate correctly.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("%w: amount is empty", x402.ErrInvalidAmount)
	}
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("%w: %q is not a decimal integer", x402.ErrInvalidAmount, amount)
	}
	if v.Sign() <= 0 {
		return fmt.Errorf("%w: %q is not positive", x402.ErrInvalidAmount, amount)
	}
	return nil
}

// ValidateAddress checks an address against the network's VM family:
// 0x-prefixed hex for EVM chains, base58 for Solana.
func ValidateAddress(address, network string) error {
	if address == "" {
		return fmt.Errorf("%w: address is empty", x402.ErrInvalidToken)
	}
	networkType, err := x402.ValidateNetwork(network)
	if err != nil {
		return err
	}

	switch networkType {
	case x402.NetworkTypeEVM:
		if !evmAddressRegex.MatchString(address) {
			return fmt.Errorf("%w: %q is not a valid EVM address", x402.ErrInvalidToken, address)
		}
	case x402.NetworkTypeSVM:
		if !solanaAddressRegex.MatchString(address) {
			return fmt.Errorf("%w: %q is not a valid Solana address", x402.ErrInvalidToken, address)
		}
	default:
		return fmt.Errorf("%w: %s", x402.ErrInvalidNetwork, network)
	}
	return nil
}

// ValidatePaymentRequirement checks every field of a requirement:
// amount, network, recipient and asset addresses, scheme, and timeout.
func ValidatePaymentRequirement(req x402.PaymentRequirement) error {
	if err := ValidateAmount(req.MaxAmountRequired); err != nil {
		return err
	}
	if req.Network == "" {
		return fmt.Errorf("%w: network is empty", x402.ErrInvalidRequirements)
	}
	networkType, err := x402.ValidateNetwork(req.Network)
	if err != nil {
		return err
	}
	if err := ValidateAddress(req.PayTo, req.Network); err != nil {
		return fmt.Errorf("payTo: %w", err)
	}
	if err := ValidateAddress(req.Asset, req.Network); err != nil {
		return fmt.Errorf("asset: %w", err)
	}

	switch req.Scheme {
	case x402.SchemeExact:
	case "":
		return fmt.Errorf("%w: scheme is empty", x402.ErrInvalidRequirements)
	default:
		return fmt.Errorf("%w: %s", x402.ErrUnsupportedScheme, req.Scheme)
	}

	if req.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("%w: negative timeout %d", x402.ErrInvalidRequirements, req.MaxTimeoutSeconds)
	}

	// EVM requirements that carry EIP-3009 domain parameters must not
	// carry empty ones.
	if networkType == x402.NetworkTypeEVM && req.Extra != nil {
		if name, ok := req.Extra["name"].(string); ok && name == "" {
			return fmt.Errorf("%w: empty EIP-3009 domain name", x402.ErrInvalidRequirements)
		}
		if version, ok := req.Extra["version"].(string); ok && version == "" {
			return fmt.Errorf("%w: empty EIP-3009 domain version", x402.ErrInvalidRequirements)
		}
	}
	return nil
}

// ValidatePaymentPayload checks the envelope of a submitted payment.
func ValidatePaymentPayload(payment x402.PaymentPayload) error {
	if payment.X402Version != x402.ProtocolVersion {
		return fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, payment.X402Version)
	}
	if payment.Scheme == "" {
		return fmt.Errorf("%w: scheme is empty", x402.ErrMalformedHeader)
	}
	if payment.Network == "" {
		return fmt.Errorf("%w: network is empty", x402.ErrMalformedHeader)
	}
	if _, err := x402.ValidateNetwork(payment.Network); err != nil {
		return err
	}
	if payment.Payload == nil {
		return fmt.Errorf("%w: missing payload", x402.ErrMalformedHeader)
	}
	return nil
}
