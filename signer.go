package x402

import "math/big"

// Signer produces a signed PaymentPayload for requirements it supports.
// Implementations exist for local EVM keys (package evm), Solana keys
// (package svm), and remote wallets (package signers/cdp).
type Signer interface {
	// Network returns the network this signer pays on, e.g. "base".
	Network() string

	// Scheme returns the payment scheme this signer produces, e.g. "exact".
	Scheme() string

	// CanSign reports whether this signer can satisfy the requirement
	// (network, scheme, and asset all match).
	CanSign(requirement *PaymentRequirement) bool

	// Sign builds and signs a payment for the requirement.
	Sign(requirement *PaymentRequirement) (*PaymentPayload, error)

	// GetPriority orders signers; lower wins. Zero default.
	GetPriority() int

	// GetTokens lists the tokens this signer is willing to spend.
	GetTokens() []TokenConfig

	// GetMaxAmount returns the per-call spending ceiling in atomic
	// units, or nil for no limit.
	GetMaxAmount() *big.Int
}
