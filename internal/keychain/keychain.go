// Package keychain stores account credentials in a 99designs/keyring vault
// (macOS Keychain when available, an encrypted file vault otherwise).
package keychain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = keyring.ErrKeyNotFound

// Config configures the vault backing a Keychain.
type Config struct {
	ServiceName   string
	VaultName     string
	AppName       string
	ConfigDir     string
	VaultPassword string
}

// Keychain is a thin get/set/remove view over a keyring vault.
type Keychain struct {
	ring   keyring.Keyring
	config *Config
}

// Open opens (or creates) the vault. File vaults prompt for a password unless
// one was supplied in the config.
func Open(config *Config) (*Keychain, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    config.ServiceName,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		KeychainTrustApplication:       true,
		FileDir:                        config.ConfigDir,
		FilePasswordFunc: func(string) (string, error) {
			if len(config.VaultPassword) == 0 {
				msg := "Enter a password to decrypt your credentials vault: " + filepath.Join(config.ConfigDir, config.VaultName)
				if _, err := os.Stat(filepath.Join(config.ConfigDir, config.VaultName)); errors.Is(err, os.ErrNotExist) {
					msg = "Enter a password to encrypt your credentials to vault: " + filepath.Join(config.ConfigDir, config.VaultName)
				}
				prompt := &survey.Password{
					Message: msg,
				}
				if err := survey.AskOne(prompt, &config.VaultPassword); err != nil {
					if err == terminal.InterruptErr {
						log.Warn("Exiting...")
						os.Exit(0)
					}
					return "", err
				}
			}
			return config.VaultPassword, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %v", err)
	}

	return &Keychain{ring: ring, config: config}, nil
}

func (k *Keychain) Get(key string) ([]byte, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Data, nil
}

func (k *Keychain) Set(key string, data []byte) error {
	return k.ring.Set(keyring.Item{
		Key:         key,
		Data:        data,
		Label:       k.config.AppName,
		Description: "application password",
	})
}

func (k *Keychain) Remove(key string) error {
	return k.ring.Remove(key)
}
