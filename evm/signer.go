package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/x402labs/x402-go"
)

// Signer implements x402.Signer for EVM networks.
type Signer struct {
	wallet    Wallet
	network   string
	chainID   int64
	tokens    []x402.TokenConfig
	priority  int
	maxAmount *big.Int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner builds an EVM signer. A wallet (private key, keystore,
// mnemonic, or custom Wallet) and a network are required. The chain ID
// and a default USDC token config are filled in from the chain registry
// when the network is a known one.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.wallet == nil {
		return nil, x402.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402.ErrInvalidNetwork
	}
	if chain, ok := x402.ChainByNetwork(s.network); ok && chain.Type == x402.NetworkTypeEVM {
		if s.chainID == 0 {
			s.chainID = chain.ChainID
		}
		if len(s.tokens) == 0 {
			s.tokens = append(s.tokens, x402.NewUSDCTokenConfig(chain, 0))
		}
	}
	if s.chainID == 0 {
		return nil, x402.ErrInvalidNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402.ErrNoTokens
	}
	return s, nil
}

// WithWallet plugs in an externally supplied signing capability.
func WithWallet(wallet Wallet) SignerOption {
	return func(s *Signer) error {
		if wallet == nil {
			return x402.ErrInvalidKey
		}
		s.wallet = wallet
		return nil
	}
}

// WithPrivateKey sets the signing key from a hex string, with or
// without a 0x prefix.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKey, err)
		}
		s.wallet = NewLocalWallet(key)
		return nil
	}
}

// WithNetwork sets the network this signer pays on, e.g. "base".
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithChainID overrides the chain ID for networks the registry does not
// know about.
func WithChainID(chainID int64) SignerOption {
	return func(s *Signer) error {
		if chainID <= 0 {
			return x402.ErrInvalidNetwork
		}
		s.chainID = chainID
		return nil
	}
}

// WithToken adds a token this signer is willing to spend.
func WithToken(address, symbol string, decimals int) SignerOption {
	return WithTokenPriority(address, symbol, decimals, 0)
}

// WithTokenPriority adds a token with an explicit priority; lower wins.
func WithTokenPriority(address, symbol string, decimals, priority int) SignerOption {
	return func(s *Signer) error {
		if !common.IsHexAddress(address) {
			return x402.ErrInvalidToken
		}
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  address,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: priority,
		})
		return nil
	}
}

// WithPriority sets the signer priority; lower wins.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithMaxAmountPerCall caps the amount this signer will authorize in a
// single payment, in atomic units.
func WithMaxAmountPerCall(amount string) SignerOption {
	return func(s *Signer) error {
		limit, ok := new(big.Int).SetString(amount, 10)
		if !ok || limit.Sign() <= 0 {
			return x402.ErrInvalidAmount
		}
		s.maxAmount = limit
		return nil
	}
}

// Address returns the payer address as 0x-prefixed hex.
func (s *Signer) Address() string {
	return s.wallet.Address().Hex()
}

// Network implements x402.Signer.
func (s *Signer) Network() string { return s.network }

// Scheme implements x402.Signer.
func (s *Signer) Scheme() string { return x402.SchemeExact }

// CanSign implements x402.Signer.
func (s *Signer) CanSign(req *x402.PaymentRequirement) bool {
	if req.Network != s.network || req.Scheme != x402.SchemeExact {
		return false
	}
	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, req.Asset) {
			return true
		}
	}
	return false
}

// Sign implements x402.Signer. It validates the requirement, builds a
// time-bounded EIP-3009 authorization with a fresh nonce, and has the
// wallet sign it as EIP-712 typed data. Validation failures surface
// before the wallet is ever invoked.
func (s *Signer) Sign(req *x402.PaymentRequirement) (*x402.PaymentPayload, error) {
	if !s.CanSign(req) {
		return nil, x402.ErrNoValidSigner
	}

	amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", x402.ErrInvalidAmount, req.MaxAmountRequired)
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeAmountExceeded, "payment amount exceeds per-call limit", x402.ErrAmountExceeded).
			WithDetails("amount", amount.String()).
			WithDetails("limit", s.maxAmount.String())
	}
	if !common.IsHexAddress(req.PayTo) {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "payTo is not a valid EVM address", x402.ErrInvalidRequirements).
			WithDetails("payTo", req.PayTo)
	}
	if !common.IsHexAddress(req.Asset) {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "asset is not a valid EVM address", x402.ErrInvalidRequirements).
			WithDetails("asset", req.Asset)
	}

	auth, err := NewTransferAuthorization(s.wallet.Address(), common.HexToAddress(req.PayTo), amount, req.MaxTimeoutSeconds)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build authorization", err)
	}

	name, version := s.domainParams(req)
	data := TransferTypedData(name, version, s.chainID, common.HexToAddress(req.Asset), auth)
	sig, err := s.wallet.SignTypedData(data)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "wallet rejected typed data", err)
	}

	return &x402.PaymentPayload{
		X402Version: x402.ProtocolVersion,
		Scheme:      x402.SchemeExact,
		Network:     s.network,
		Payload: x402.EVMPayload{
			Signature:     hexutil.Encode(sig),
			Authorization: auth.Authorization(),
		},
	}, nil
}

// domainParams resolves the EIP-712 domain name and version for the
// token being spent: the requirement's extra field wins, then the chain
// registry's USDC parameters.
func (s *Signer) domainParams(req *x402.PaymentRequirement) (string, string) {
	name, version := "", ""
	if req.Extra != nil {
		if v, ok := req.Extra["name"].(string); ok {
			name = v
		}
		if v, ok := req.Extra["version"].(string); ok {
			version = v
		}
	}
	if name != "" && version != "" {
		return name, version
	}
	if chain, ok := x402.ChainByNetwork(s.network); ok && strings.EqualFold(chain.USDCAddress, req.Asset) {
		if name == "" {
			name = chain.EIP3009Name
		}
		if version == "" {
			version = chain.EIP3009Version
		}
	}
	if name == "" {
		name = "USD Coin"
	}
	if version == "" {
		version = "2"
	}
	return name, version
}

// GetPriority implements x402.Signer.
func (s *Signer) GetPriority() int { return s.priority }

// GetTokens implements x402.Signer.
func (s *Signer) GetTokens() []x402.TokenConfig { return s.tokens }

// GetMaxAmount implements x402.Signer.
func (s *Signer) GetMaxAmount() *big.Int { return s.maxAmount }
