package evm

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/x402labs/x402-go"
)

// WithKeystore decrypts a web3 secret storage document and uses the
// contained key.
func WithKeystore(keystoreJSON []byte, password string) SignerOption {
	return func(s *Signer) error {
		key, err := keystore.DecryptKey(keystoreJSON, password)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}
		s.wallet = NewLocalWallet(key.PrivateKey)
		return nil
	}
}

// WithKeystoreFile reads and decrypts a keystore file from disk.
func WithKeystoreFile(path, password string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}
		return WithKeystore(data, password)(s)
	}
}

// WithMnemonic derives the signing key from a BIP-39 phrase at the
// standard Ethereum path m/44'/60'/0'/0/index.
func WithMnemonic(mnemonic string, index uint32) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return x402.ErrInvalidMnemonic
		}
		seed := bip39.NewSeed(mnemonic, "")

		key, err := bip32.NewMasterKey(seed)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}
		path := []uint32{
			bip32.FirstHardenedChild + 44,
			bip32.FirstHardenedChild + 60,
			bip32.FirstHardenedChild,
			0,
			index,
		}
		for _, step := range path {
			if key, err = key.NewChildKey(step); err != nil {
				return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
			}
		}

		privateKey, err := crypto.ToECDSA(key.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKey, err)
		}
		s.wallet = NewLocalWallet(privateKey)
		return nil
	}
}
