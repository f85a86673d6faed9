// Package keyring stores the daemon access token in the OS keyring. The
// config file's remote_token remains the fallback for environments without a
// usable keyring backend.
package keyring

import (
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "warden"
	tokenKey    = "remote-token"
)

var (
	ring     keyring.Keyring
	ringOnce sync.Once
	ringErr  error
)

func initKeyring() (keyring.Keyring, error) {
	ringOnce.Do(func() {
		ring, ringErr = keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,      // macOS Keychain
				keyring.SecretServiceBackend, // Linux Secret Service (GNOME Keyring, KWallet)
				keyring.WinCredBackend,       // Windows Credential Manager
				keyring.PassBackend,          // Pass (password-store.org)
			},
		})
	})
	return ring, ringErr
}

// SetToken stores the daemon access token.
func SetToken(token string) error {
	kr, err := initKeyring()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	return kr.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(token),
	})
}

// GetToken retrieves the stored daemon access token. Returns an empty string
// when no token is stored or the keyring is unavailable.
func GetToken() (string, error) {
	kr, err := initKeyring()
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}

	item, err := kr.Get(tokenKey)
	if err == keyring.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve token: %w", err)
	}
	return string(item.Data), nil
}

// DeleteToken removes the stored daemon access token.
func DeleteToken() error {
	kr, err := initKeyring()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	err = kr.Remove(tokenKey)
	if err == keyring.ErrKeyNotFound {
		return fmt.Errorf("no token stored")
	}
	return err
}
