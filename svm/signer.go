// Package svm implements an x402 signer for Solana networks. The
// payment is an SPL token transfer, partially signed by the payer; the
// facilitator sets the recent blockhash, adds the fee payer signature,
// and broadcasts.
package svm

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/x402labs/x402-go"
)

// Signer implements x402.Signer for Solana.
type Signer struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	network    string
	tokens     []x402.TokenConfig
	priority   int
	maxAmount  *big.Int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner builds a Solana signer. A private key and a network are
// required; known networks get a default USDC mint from the chain
// registry.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if len(s.privateKey) == 0 {
		return nil, x402.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402.ErrInvalidNetwork
	}
	if chain, ok := x402.ChainByNetwork(s.network); ok && chain.Type == x402.NetworkTypeSVM && len(s.tokens) == 0 {
		s.tokens = append(s.tokens, x402.NewUSDCTokenConfig(chain, 0))
	}
	if len(s.tokens) == 0 {
		return nil, x402.ErrNoTokens
	}

	s.publicKey = s.privateKey.PublicKey()
	return s, nil
}

// WithPrivateKey sets the signing key from a base58 string.
func WithPrivateKey(base58Key string) SignerOption {
	return func(s *Signer) error {
		key, err := solana.PrivateKeyFromBase58(base58Key)
		if err != nil {
			return x402.ErrInvalidKey
		}
		s.privateKey = key
		return nil
	}
}

// WithKeygenFile loads the key from a solana-keygen JSON file (a JSON
// array of 64 bytes).
func WithKeygenFile(path string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}
		var keyBytes []byte
		if err := json.Unmarshal(data, &keyBytes); err != nil {
			return fmt.Errorf("%w: not a JSON byte array", x402.ErrInvalidKeystore)
		}
		if len(keyBytes) != 64 {
			return fmt.Errorf("%w: key is %d bytes, want 64", x402.ErrInvalidKeystore, len(keyBytes))
		}
		s.privateKey = solana.PrivateKey(keyBytes)
		return nil
	}
}

// WithNetwork sets the network, e.g. "solana" or "solana-devnet".
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithToken adds a mint this signer is willing to spend.
func WithToken(mintAddress, symbol string, decimals int) SignerOption {
	return WithTokenPriority(mintAddress, symbol, decimals, 0)
}

// WithTokenPriority adds a mint with an explicit priority; lower wins.
func WithTokenPriority(mintAddress, symbol string, decimals, priority int) SignerOption {
	return func(s *Signer) error {
		if _, err := solana.PublicKeyFromBase58(mintAddress); err != nil {
			return x402.ErrInvalidToken
		}
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  mintAddress,
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

// WithMaxAmountPerCall caps the amount this signer will authorize per
// payment, in atomic units.
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

// Address returns the payer public key as base58.
func (s *Signer) Address() string {
	return s.publicKey.String()
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

// Sign implements x402.Signer.
func (s *Signer) Sign(req *x402.PaymentRequirement) (*x402.PaymentPayload, error) {
	if !s.CanSign(req) {
		return nil, x402.ErrNoValidSigner
	}

	amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok || amount.Sign() < 0 || !amount.IsUint64() {
		return nil, fmt.Errorf("%w: %q", x402.ErrInvalidAmount, req.MaxAmountRequired)
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeAmountExceeded, "payment amount exceeds per-call limit", x402.ErrAmountExceeded).
			WithDetails("amount", amount.String()).
			WithDetails("limit", s.maxAmount.String())
	}

	mint, err := solana.PublicKeyFromBase58(req.Asset)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "asset is not a valid mint address", err)
	}
	recipient, err := solana.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "payTo is not a valid address", err)
	}

	txBase64, err := BuildPartiallySignedTransfer(s.privateKey, s.publicKey, mint, recipient, amount.Uint64())
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build transaction", err)
	}

	return &x402.PaymentPayload{
		X402Version: x402.ProtocolVersion,
		Scheme:      x402.SchemeExact,
		Network:     s.network,
		Payload: x402.SVMPayload{
			Transaction: txBase64,
		},
	}, nil
}

// GetPriority implements x402.Signer.
func (s *Signer) GetPriority() int { return s.priority }

// GetTokens implements x402.Signer.
func (s *Signer) GetTokens() []x402.TokenConfig { return s.tokens }

// GetMaxAmount implements x402.Signer.
func (s *Signer) GetMaxAmount() *big.Int { return s.maxAmount }

// BuildPartiallySignedTransfer builds an SPL token transfer between the
// associated token accounts of payer and recipient, signed only by the
// payer. The blockhash is a placeholder; the facilitator replaces it
// and signs as fee payer.
func BuildPartiallySignedTransfer(
	payerKey solana.PrivateKey,
	payer solana.PublicKey,
	mint solana.PublicKey,
	recipient solana.PublicKey,
	amount uint64,
) (string, error) {
	sourceATA, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return "", fmt.Errorf("source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return "", fmt.Errorf("destination token account: %w", err)
	}

	transfer := solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			solana.Meta(sourceATA).WRITE(),
			solana.Meta(destATA).WRITE(),
			solana.Meta(payer).SIGNER(),
		},
		transferInstructionData(amount),
	)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transfer},
		solana.Hash{}, // placeholder, set by the facilitator
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &payerKey
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// transferInstructionData encodes an SPL Token Transfer instruction:
// discriminator 3 followed by the amount as little-endian u64.
func transferInstructionData(amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}
