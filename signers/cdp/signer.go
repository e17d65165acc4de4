package cdp

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/evm"
)

// cdpNetworks maps payment network names to CDP network identifiers.
var cdpNetworks = map[string]string{
	"base":         "base-mainnet",
	"base-sepolia": "base-sepolia",
	"ethereum":     "ethereum-mainnet",
	"sepolia":      "sepolia",
}

// Option configures a CDP signer.
type Option func(*builder) error

type builder struct {
	auth    *Auth
	client  *Client
	network string
	evmOpts []evm.SignerOption
}

// NewSigner builds a payment signer backed by a CDP-managed wallet with
// the given account name. The account is created on first use and
// reused afterwards. The returned signer authorizes EIP-3009 transfers
// locally and sends only the EIP-712 document to CDP for signing.
func NewSigner(accountName string, opts ...Option) (*evm.Signer, error) {
	b := &builder{}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.client == nil {
		if b.auth == nil {
			return nil, fmt.Errorf("cdp: credentials not configured")
		}
		b.client = NewClient(b.auth)
	}
	if b.network == "" {
		return nil, x402.ErrInvalidNetwork
	}
	cdpNetwork, ok := cdpNetworks[b.network]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no CDP equivalent", x402.ErrInvalidNetwork, b.network)
	}

	account, err := CreateOrGetAccount(context.Background(), b.client, cdpNetwork, accountName)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(account.Address) {
		return nil, fmt.Errorf("cdp: account address %q is not an EVM address", account.Address)
	}

	wallet := &remoteWallet{
		client:  b.client,
		address: common.HexToAddress(account.Address),
	}
	evmOpts := append([]evm.SignerOption{
		evm.WithWallet(wallet),
		evm.WithNetwork(b.network),
	}, b.evmOpts...)
	return evm.NewSigner(evmOpts...)
}

// WithCredentials sets the CDP API key. keySecret is the PEM-encoded
// private key downloaded from the CDP console.
func WithCredentials(keyID, keySecret string) Option {
	return func(b *builder) error {
		auth, err := NewAuth(keyID, keySecret)
		if err != nil {
			return err
		}
		b.auth = auth
		return nil
	}
}

// WithCredentialsFromEnv reads CDP_API_KEY_NAME and CDP_API_KEY_SECRET.
func WithCredentialsFromEnv() Option {
	return func(b *builder) error {
		keyID := os.Getenv("CDP_API_KEY_NAME")
		keySecret := os.Getenv("CDP_API_KEY_SECRET")
		if keyID == "" || keySecret == "" {
			return fmt.Errorf("cdp: CDP_API_KEY_NAME and CDP_API_KEY_SECRET must be set")
		}
		return WithCredentials(keyID, keySecret)(b)
	}
}

// WithClient overrides the API client, mainly for tests.
func WithClient(client *Client) Option {
	return func(b *builder) error {
		b.client = client
		return nil
	}
}

// WithNetwork sets the network this signer pays on.
func WithNetwork(network string) Option {
	return func(b *builder) error {
		b.network = network
		return nil
	}
}

// WithToken adds a token this signer is willing to spend.
func WithToken(address, symbol string, decimals int) Option {
	return func(b *builder) error {
		b.evmOpts = append(b.evmOpts, evm.WithToken(address, symbol, decimals))
		return nil
	}
}

// WithPriority sets the signer priority; lower wins.
func WithPriority(priority int) Option {
	return func(b *builder) error {
		b.evmOpts = append(b.evmOpts, evm.WithPriority(priority))
		return nil
	}
}

// WithMaxAmountPerCall caps the amount this signer will authorize in a
// single payment, in atomic units.
func WithMaxAmountPerCall(amount string) Option {
	return func(b *builder) error {
		b.evmOpts = append(b.evmOpts, evm.WithMaxAmountPerCall(amount))
		return nil
	}
}

// remoteWallet implements evm.Wallet by delegating typed-data signing
// to the CDP API. The private key never leaves CDP.
type remoteWallet struct {
	client  *Client
	address common.Address
}

func (w *remoteWallet) Address() common.Address {
	return w.address
}

// typedDataRequest is the CDP wire form of an EIP-712 document. CDP
// wants the chain ID as a JSON number, not the hex string
// apitypes.TypedData marshals to.
type typedDataRequest struct {
	Domain      map[string]interface{} `json:"domain"`
	Types       map[string][]typeField `json:"types"`
	PrimaryType string                 `json:"primaryType"`
	Message     map[string]interface{} `json:"message"`
}

type typeField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type signTypedDataResponse struct {
	Signature string `json:"signature"`
}

func (w *remoteWallet) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	path := fmt.Sprintf("%s/%s/sign/typed-data", evmAccountsPath, w.address.Hex())

	types := make(map[string][]typeField, len(data.Types))
	for name, fields := range data.Types {
		converted := make([]typeField, len(fields))
		for i, f := range fields {
			converted[i] = typeField{Name: f.Name, Type: f.Type}
		}
		types[name] = converted
	}

	req := &typedDataRequest{
		Domain: map[string]interface{}{
			"name":              data.Domain.Name,
			"version":           data.Domain.Version,
			"chainId":           (*big.Int)(data.Domain.ChainId).Int64(),
			"verifyingContract": data.Domain.VerifyingContract,
		},
		Types:       types,
		PrimaryType: data.PrimaryType,
		Message:     data.Message,
	}

	var resp signTypedDataResponse
	if err := w.client.do(context.Background(), http.MethodPost, path, req, &resp, true); err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	sig, err := hexutil.Decode(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("cdp: malformed signature %q: %w", resp.Signature, err)
	}
	if len(sig) == 65 && sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}
