package evm

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/x402labs/x402-go"
)

const (
	// clockSkewSeconds backdates validAfter so an authorization is
	// already valid on chains and servers whose clocks lag the client.
	clockSkewSeconds = 600

	// defaultTimeoutSeconds bounds the validity window when the
	// requirement does not specify maxTimeoutSeconds.
	defaultTimeoutSeconds = 300
)

// TransferAuthorization holds the parameters of an EIP-3009
// transferWithAuthorization call.
type TransferAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// NewTransferAuthorization builds a time-bounded authorization with a
// fresh random nonce. The validity window opens clockSkewSeconds in the
// past and closes timeoutSeconds after the current time.
func NewTransferAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*TransferAuthorization, error) {
	if value == nil || value.Sign() < 0 {
		return nil, x402.ErrInvalidAmount
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}

	now := time.Now().Unix()
	return &TransferAuthorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(now - clockSkewSeconds),
		ValidBefore: big.NewInt(now + int64(timeoutSeconds)),
		Nonce:       nonce,
	}, nil
}

// Authorization converts to the wire representation. Every numeric
// field becomes a decimal string; the nonce becomes 0x-prefixed hex.
func (a *TransferAuthorization) Authorization() x402.EVMAuthorization {
	return x402.EVMAuthorization{
		From:        a.From.Hex(),
		To:          a.To.Hex(),
		Value:       a.Value.String(),
		ValidAfter:  a.ValidAfter.String(),
		ValidBefore: a.ValidBefore.String(),
		Nonce:       hexutil.Encode(a.Nonce[:]),
	}
}

// TransferTypedData builds the EIP-712 document for a
// transferWithAuthorization call against the given token contract.
func TransferTypedData(name, version string, chainID int64, token common.Address, auth *TransferAuthorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: token.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       auth.Value.String(),
			"validAfter":  auth.ValidAfter.String(),
			"validBefore": auth.ValidBefore.String(),
			"nonce":       hexutil.Encode(auth.Nonce[:]),
		},
	}
}

// SignTransferAuthorization signs the typed data with the wallet and
// returns the signature as 0x-prefixed hex.
func SignTransferAuthorization(wallet Wallet, data apitypes.TypedData) (string, error) {
	sig, err := wallet.SignTypedData(data)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}
