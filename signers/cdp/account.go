package cdp

import (
	"context"
	"fmt"
	"net/http"
)

const evmAccountsPath = "/platform/v2/evm/accounts"

// Account is an EVM wallet managed by CDP.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Network string `json:"network"`
}

type listAccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type createAccountRequest struct {
	Name      string `json:"name,omitempty"`
	NetworkID string `json:"network_id"`
}

// CreateOrGetAccount returns the account with the given name on the
// given CDP network, creating it when it does not exist yet. Account
// creation is idempotent under this call.
func CreateOrGetAccount(ctx context.Context, client *Client, cdpNetwork, name string) (*Account, error) {
	var existing listAccountsResponse
	if err := client.do(ctx, http.MethodGet, evmAccountsPath, nil, &existing, false); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for _, account := range existing.Accounts {
		if account.Network == cdpNetwork && (name == "" || account.Name == name) {
			found := account
			return &found, nil
		}
	}

	var created Account
	if err := client.do(ctx, http.MethodPost, evmAccountsPath, &createAccountRequest{
		Name:      name,
		NetworkID: cdpNetwork,
	}, &created, false); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if created.Address == "" {
		return nil, fmt.Errorf("cdp: account created without an address")
	}
	return &created, nil
}
