// Package x402 implements the client side of the x402 pay-per-request
// protocol: detecting HTTP 402 challenges, negotiating a payment
// requirement, signing an authorization, and retrying the request with
// an X-PAYMENT header. Chain constants below carry verified USDC
// addresses and EIP-3009 domain parameters for the supported networks.
package x402

import (
	"fmt"
	"strings"
)

// NetworkType is the virtual machine family of a network.
type NetworkType int

const (
	// NetworkTypeUnknown is an unrecognized network.
	NetworkTypeUnknown NetworkType = iota
	// NetworkTypeEVM is an Ethereum Virtual Machine chain.
	NetworkTypeEVM
	// NetworkTypeSVM is a Solana Virtual Machine chain.
	NetworkTypeSVM
)

// ChainConfig holds per-network constants used when building and
// signing payments.
type ChainConfig struct {
	// NetworkID is the x402 network identifier, e.g. "base".
	NetworkID string

	// Type is the chain's VM family.
	Type NetworkType

	// ChainID is the EVM chain ID; zero for non-EVM chains.
	ChainID int64

	// USDCAddress is the official Circle USDC contract or mint address.
	USDCAddress string

	// Decimals is USDC's decimal precision (always 6).
	Decimals int

	// EIP3009Name is the EIP-712 domain "name" of the USDC contract
	// (empty for non-EVM chains).
	EIP3009Name string

	// EIP3009Version is the EIP-712 domain "version" of the USDC
	// contract (empty for non-EVM chains).
	EIP3009Version string
}

// Mainnet chains.
var (
	EthereumMainnet = ChainConfig{
		NetworkID:      "ethereum",
		Type:           NetworkTypeEVM,
		ChainID:        1,
		USDCAddress:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	BaseMainnet = ChainConfig{
		NetworkID:      "base",
		Type:           NetworkTypeEVM,
		ChainID:        8453,
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	PolygonMainnet = ChainConfig{
		NetworkID:      "polygon",
		Type:           NetworkTypeEVM,
		ChainID:        137,
		USDCAddress:    "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	AvalancheMainnet = ChainConfig{
		NetworkID:      "avalanche",
		Type:           NetworkTypeEVM,
		ChainID:        43114,
		USDCAddress:    "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	SolanaMainnet = ChainConfig{
		NetworkID:   "solana",
		Type:        NetworkTypeSVM,
		USDCAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals:    6,
	}
)

// Testnet chains.
var (
	EthereumSepolia = ChainConfig{
		NetworkID:      "sepolia",
		Type:           NetworkTypeEVM,
		ChainID:        11155111,
		USDCAddress:    "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	BaseSepolia = ChainConfig{
		NetworkID:      "base-sepolia",
		Type:           NetworkTypeEVM,
		ChainID:        84532,
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	PolygonAmoy = ChainConfig{
		NetworkID:      "polygon-amoy",
		Type:           NetworkTypeEVM,
		ChainID:        80002,
		USDCAddress:    "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	AvalancheFuji = ChainConfig{
		NetworkID:      "avalanche-fuji",
		Type:           NetworkTypeEVM,
		ChainID:        43113,
		USDCAddress:    "0x5425890298aed601595a70AB815c96711a31Bc65",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	SolanaDevnet = ChainConfig{
		NetworkID:   "solana-devnet",
		Type:        NetworkTypeSVM,
		USDCAddress: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Decimals:    6,
	}
)

var chainRegistry = map[string]ChainConfig{
	EthereumMainnet.NetworkID:  EthereumMainnet,
	EthereumSepolia.NetworkID:  EthereumSepolia,
	BaseMainnet.NetworkID:      BaseMainnet,
	BaseSepolia.NetworkID:      BaseSepolia,
	PolygonMainnet.NetworkID:   PolygonMainnet,
	PolygonAmoy.NetworkID:      PolygonAmoy,
	AvalancheMainnet.NetworkID: AvalancheMainnet,
	AvalancheFuji.NetworkID:    AvalancheFuji,
	SolanaMainnet.NetworkID:    SolanaMainnet,
	SolanaDevnet.NetworkID:     SolanaDevnet,
}

// ChainByNetwork looks up the ChainConfig for an x402 network identifier.
func ChainByNetwork(networkID string) (ChainConfig, bool) {
	c, ok := chainRegistry[networkID]
	return c, ok
}

// ValidateNetwork checks a network identifier and returns its VM family.
func ValidateNetwork(networkID string) (NetworkType, error) {
	if networkID == "" {
		return NetworkTypeUnknown, fmt.Errorf("%w: network identifier is empty", ErrInvalidNetwork)
	}
	c, ok := chainRegistry[networkID]
	if !ok {
		return NetworkTypeUnknown, fmt.Errorf("%w: %s", ErrInvalidNetwork, networkID)
	}
	return c.Type, nil
}

// ValidateTokenAddress checks that a token address is syntactically
// valid for the network's VM family: 0x-prefixed 40-digit hex for EVM,
// base58 (32-44 chars) for Solana.
func ValidateTokenAddress(networkID, address string) error {
	if address == "" {
		return fmt.Errorf("%w: token address is empty", ErrInvalidToken)
	}
	netType, err := ValidateNetwork(networkID)
	if err != nil {
		return err
	}

	switch netType {
	case NetworkTypeEVM:
		if !isHexAddress(address) {
			return fmt.Errorf("%w: %q is not a 0x-prefixed hex address", ErrInvalidToken, address)
		}
	case NetworkTypeSVM:
		if !isBase58Address(address) {
			return fmt.Errorf("%w: %q is not a base58 address", ErrInvalidToken, address)
		}
	}
	return nil
}

func isHexAddress(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}
	for _, c := range address[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isBase58Address(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	for _, c := range address {
		switch {
		case c >= '1' && c <= '9':
		case c >= 'A' && c <= 'H':
		case c >= 'J' && c <= 'N':
		case c >= 'P' && c <= 'Z':
		case c >= 'a' && c <= 'k':
		case c >= 'm' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

// NewUSDCTokenConfig builds a TokenConfig for USDC on the given chain.
func NewUSDCTokenConfig(chain ChainConfig, priority int) TokenConfig {
	return TokenConfig{
		Address:  chain.USDCAddress,
		Symbol:   "USDC",
		Decimals: chain.Decimals,
		Priority: priority,
		Name:     chain.EIP3009Name,
	}
}

// USDCRequirementConfig configures NewUSDCPaymentRequirement.
type USDCRequirementConfig struct {
	// Chain is the chain to charge on (required).
	Chain ChainConfig

	// Amount is the human-readable USDC amount, e.g. "1.5". Zero is
	// allowed for free-with-signature flows.
	Amount string

	// RecipientAddress receives the payment (required).
	RecipientAddress string

	// Resource is the URL of the protected resource.
	Resource string

	// Description is a human-readable description of what the payment
	// buys, shown to payers in the 402 challenge.
	Description string

	// Scheme defaults to "exact".
	Scheme string

	// MaxTimeoutSeconds defaults to 300.
	MaxTimeoutSeconds int

	// MimeType defaults to "application/json".
	MimeType string
}

// NewUSDCPaymentRequirement builds a PaymentRequirement charging USDC on
// the configured chain. The human-readable amount is converted to atomic
// units with exact integer arithmetic; amounts with more fractional
// digits than USDC supports are rejected rather than rounded.
func NewUSDCPaymentRequirement(config USDCRequirementConfig) (PaymentRequirement, error) {
	if config.RecipientAddress == "" {
		return PaymentRequirement{}, fmt.Errorf("%w: recipient address is empty", ErrInvalidRequirements)
	}
	atomic, err := ParseTokenAmount(config.Amount, config.Chain.Decimals)
	if err != nil {
		return PaymentRequirement{}, err
	}

	scheme := config.Scheme
	if scheme == "" {
		scheme = SchemeExact
	}
	maxTimeout := config.MaxTimeoutSeconds
	if maxTimeout == 0 {
		maxTimeout = 300
	}
	mimeType := config.MimeType
	if mimeType == "" {
		mimeType = "application/json"
	}

	req := PaymentRequirement{
		Scheme:            scheme,
		Network:           config.Chain.NetworkID,
		MaxAmountRequired: atomic.String(),
		Asset:             config.Chain.USDCAddress,
		PayTo:             config.RecipientAddress,
		Resource:          config.Resource,
		Description:       config.Description,
		MimeType:          mimeType,
		MaxTimeoutSeconds: maxTimeout,
	}
	if config.Chain.EIP3009Name != "" {
		req.Extra = map[string]interface{}{
			"name":    config.Chain.EIP3009Name,
			"version": config.Chain.EIP3009Version,
		}
	}
	return req, nil
}
