package x402

import (
	"errors"
	"math/big"
	"sort"
	"strings"
)

// SelectRequirement picks one requirement from a challenge's accepts
// list. Selection is pure and order-preserving:
//
//  1. the first "exact" entry on preferredNetwork, if any;
//  2. otherwise the first "exact" entry on any network;
//  3. otherwise the first entry overall.
//
// An empty list fails immediately with ErrInvalidRequirements.
func SelectRequirement(accepts []PaymentRequirement, preferredNetwork string) (*PaymentRequirement, error) {
	if len(accepts) == 0 {
		return nil, NewPaymentError(ErrCodeInvalidRequirements, "challenge offers no payment requirements", ErrInvalidRequirements)
	}

	if preferredNetwork != "" {
		for i := range accepts {
			if accepts[i].Scheme == SchemeExact && accepts[i].Network == preferredNetwork {
				return &accepts[i], nil
			}
		}
	}

	for i := range accepts {
		if accepts[i].Scheme == SchemeExact {
			return &accepts[i], nil
		}
	}

	return &accepts[0], nil
}

// PaymentSelector negotiates a challenge against the configured signers
// and produces a signed payment, along with the requirement the payment
// pays, so callers can report what was actually charged.
type PaymentSelector interface {
	SelectAndSign(requirements []PaymentRequirement, signers []Signer) (*PaymentPayload, *PaymentRequirement, error)
}

// DefaultPaymentSelector tries signers in priority order. For each
// signer it narrows the accepts list to the requirements that signer
// can sign, negotiates one with SelectRequirement using the signer's
// network as the preference, then enforces the signer's per-call
// ceiling before the signing capability is ever invoked.
type DefaultPaymentSelector struct{}

// SelectAndSign implements PaymentSelector.
func (s *DefaultPaymentSelector) SelectAndSign(requirements []PaymentRequirement, signers []Signer) (*PaymentPayload, *PaymentRequirement, error) {
	if len(requirements) == 0 {
		return nil, nil, NewPaymentError(ErrCodeInvalidRequirements, "challenge offers no payment requirements", ErrInvalidRequirements)
	}
	if len(signers) == 0 {
		return nil, nil, NewPaymentError(ErrCodeNoValidSigner, "no signers configured", ErrNoValidSigner)
	}

	ordered := make([]Signer, len(signers))
	copy(ordered, signers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].GetPriority() < ordered[j].GetPriority()
	})

	var overCeiling *PaymentError
	for _, signer := range ordered {
		candidates := make([]PaymentRequirement, 0, len(requirements))
		for i := range requirements {
			if signer.CanSign(&requirements[i]) {
				candidates = append(candidates, requirements[i])
			}
		}
		if len(candidates) == 0 {
			continue
		}
		requirement, err := SelectRequirement(candidates, signer.Network())
		if err != nil {
			return nil, nil, err
		}

		// Zero stays valid for free-with-signature offers.
		amount, ok := new(big.Int).SetString(requirement.MaxAmountRequired, 10)
		if !ok || amount.Sign() < 0 {
			return nil, nil, NewPaymentError(ErrCodeInvalidRequirements, "requirement amount is not a decimal integer", ErrInvalidAmount).
				WithDetails("maxAmountRequired", requirement.MaxAmountRequired)
		}
		if limit := signer.GetMaxAmount(); limit != nil && amount.Cmp(limit) > 0 {
			overCeiling = NewPaymentError(ErrCodeAmountExceeded, "payment amount exceeds per-call limit", ErrAmountExceeded).
				WithDetails("amount", amount.String()).
				WithDetails("limit", limit.String())
			continue
		}

		payload, err := signer.Sign(requirement)
		if err != nil {
			var pe *PaymentError
			if errors.As(err, &pe) {
				return nil, nil, pe
			}
			return nil, nil, NewPaymentError(ErrCodeSigningFailed, "failed to sign payment", err)
		}
		return payload, requirement, nil
	}

	if overCeiling != nil {
		return nil, nil, overCeiling
	}
	return nil, nil, NewPaymentError(ErrCodeNoValidSigner, "no signer can satisfy payment requirements", ErrNoValidSigner)
}

// FindMatchingRequirement locates the requirement a submitted payment
// corresponds to. Servers use it to pick the requirement to verify and
// settle against.
func FindMatchingRequirement(accepts []PaymentRequirement, payment *PaymentPayload) *PaymentRequirement {
	if payment == nil {
		return nil
	}
	for i := range accepts {
		if strings.EqualFold(accepts[i].Scheme, payment.Scheme) &&
			strings.EqualFold(accepts[i].Network, payment.Network) {
			return &accepts[i]
		}
	}
	return nil
}
