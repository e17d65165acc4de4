// Package evm implements an x402 signer for EVM networks. Payments are
// EIP-3009 transferWithAuthorization calls signed as EIP-712 typed
// data. The signing capability is abstracted behind the Wallet
// interface so key material can live in-process, in an encrypted
// keystore, or behind a remote API.
package evm

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Wallet is the signing capability behind a Signer. Implementations
// hold or proxy the key; the signer itself never sees raw key bytes.
type Wallet interface {
	// Address returns the account the wallet signs for.
	Address() common.Address

	// SignTypedData signs EIP-712 typed data and returns the 65-byte
	// signature with the recovery id normalized to 27/28.
	SignTypedData(data apitypes.TypedData) ([]byte, error)
}

type localWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalWallet wraps an in-process secp256k1 key as a Wallet.
func NewLocalWallet(key *ecdsa.PrivateKey) Wallet {
	return &localWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (w *localWallet) Address() common.Address {
	return w.address
}

func (w *localWallet) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	digest, err := TypedDataDigest(data)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, err
	}
	// Contracts expect the Ethereum convention v in {27, 28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// TypedDataDigest computes the EIP-712 signing digest:
// keccak256(0x19 0x01 || domainSeparator || hashStruct(message)).
func TypedDataDigest(data apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, err
	}
	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}
