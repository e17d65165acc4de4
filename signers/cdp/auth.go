// Package cdp signs payments with Coinbase Developer Platform wallets.
// Private keys stay inside CDP; the signer builds the EIP-3009
// authorization locally and sends only the typed data out for signing.
package cdp

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

const apiHost = "api.cdp.coinbase.com"

// Auth generates the JWTs the CDP API requires: a Bearer token on every
// request and an X-Wallet-Auth token on signing requests. It is
// immutable and safe for concurrent use.
type Auth struct {
	keyID      string
	privateKey interface{}
}

// NewAuth parses a PEM-encoded ECDSA (EC or PKCS8) or Ed25519 (PKCS8)
// API key secret.
func NewAuth(keyID, keySecret string) (*Auth, error) {
	if keyID == "" {
		return nil, fmt.Errorf("cdp: key ID is empty")
	}
	block, _ := pem.Decode([]byte(keySecret))
	if block == nil {
		return nil, fmt.Errorf("cdp: key secret is not PEM")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		pkcs8Key, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("cdp: parse key: %w", pkcs8Err)
		}
		switch pkcs8Key.(type) {
		case *ecdsa.PrivateKey, crypto.Signer:
		default:
			return nil, fmt.Errorf("cdp: key must be ECDSA or Ed25519")
		}
		return &Auth{keyID: keyID, privateKey: pkcs8Key}, nil
	}
	return &Auth{keyID: keyID, privateKey: privateKey}, nil
}

// BearerToken returns a two-minute JWT for the Authorization header.
func (a *Auth) BearerToken(method, path string) (string, error) {
	return a.token(method, path, nil, 2*time.Minute)
}

// WalletAuthToken returns a one-minute JWT for the X-Wallet-Auth header
// that binds the request body via its SHA-256 hash.
func (a *Auth) WalletAuthToken(method, path string, body []byte) (string, error) {
	hash := sha256.Sum256(body)
	return a.token(method, path, hash[:], time.Minute)
}

type apiKeyClaims struct {
	*jwt.Claims
	URI     string `json:"uri"`
	ReqHash string `json:"reqHash,omitempty"`
}

func (a *Auth) token(method, path string, bodyHash []byte, lifetime time.Duration) (string, error) {
	alg := jose.EdDSA
	if _, ok := a.privateKey.(*ecdsa.PrivateKey); ok {
		alg = jose.ES256
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: a.privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", a.keyID),
	)
	if err != nil {
		return "", fmt.Errorf("cdp: jwt signer: %w", err)
	}

	now := time.Now()
	claims := &apiKeyClaims{
		Claims: &jwt.Claims{
			Subject:   a.keyID,
			Issuer:    "coinbase-cloud",
			NotBefore: jwt.NewNumericDate(now),
			Expiry:    jwt.NewNumericDate(now.Add(lifetime)),
		},
		URI: fmt.Sprintf("%s %s%s", method, apiHost, path),
	}
	if len(bodyHash) > 0 {
		claims.ReqHash = hex.EncodeToString(bodyHash)
	}

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("cdp: sign jwt: %w", err)
	}
	return token, nil
}
