package appstore

import (
	"encoding/json"
	"fmt"
)

// Account is the validated login result. PasswordToken is the short-lived
// session credential the private endpoints accept in place of the password;
// Password is cached (if supplied) so an expired token can be refreshed
// without prompting.
type Account struct {
	Email               string `json:"email"`
	PasswordToken       string `json:"passwordToken"`
	DirectoryServicesID string `json:"directoryServicesIdentifier"`
	Name                string `json:"name"`
	StoreFront          string `json:"storeFront"`
	Password            string `json:"password,omitempty"`
}

// Valid reports whether the account can be used for purchase/download calls.
func (a *Account) Valid() bool {
	return a != nil && a.PasswordToken != "" && a.DirectoryServicesID != "" && a.StoreFront != ""
}

// AccountInfo returns the persisted account from the vault.
func (as *AppStore) AccountInfo() (*Account, error) {
	data, err := as.Vault.Get(accountKey)
	if err != nil {
		return nil, newErrorf(ErrAuthenticationRequired, nil, "no active account (run login first)")
	}

	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored account: %v", err)
	}

	return &account, nil
}

// Revoke deletes the persisted account. In-memory copies are not tracked.
func (as *AppStore) Revoke() error {
	return as.Vault.Remove(accountKey)
}

func (as *AppStore) saveAccount(account *Account) error {
	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal account: %v", err)
	}
	if err := as.Vault.Set(accountKey, data); err != nil {
		return fmt.Errorf("failed to save account to vault: %v", err)
	}
	return nil
}

// requireAccount gates every authenticated operation before any network call
// is issued.
func (as *AppStore) requireAccount(account *Account) error {
	if !account.Valid() {
		return newError(ErrAuthenticationRequired, nil)
	}
	return nil
}
