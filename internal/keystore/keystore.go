// Package keystore guards the local node's at-rest database key in the
// OS keychain, falling back to a machine-bound encrypted file keyring
// where no OS-native secret store is available (headless Linux, CI).
// Grounded on the teacher's internal/keystore and
// internal/services/keychain_service.go, which do the same thing for a
// profile encryption key.
package keystore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/denisbrodbeck/machineid"
)

// KeyStore wraps OS keychain access for one service namespace.
type KeyStore struct {
	ring keyring.Keyring
}

// New opens (creating if necessary) the keystore for appName, preferring
// the platform secret service and falling back to a machine-key-password
// file keyring under dataDir.
func New(appName, dataDir string) (*KeyStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore directory: %w", err)
	}

	kr, err := keyring.Open(keyring.Config{
		ServiceName:             appName,
		KeychainName:            appName,
		KWalletAppID:            appName,
		KWalletFolder:           appName,
		WinCredPrefix:           appName,
		LibSecretCollectionName: appName,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		},
		FileDir: filepath.Join(dataDir, "keyring"),
		FilePasswordFunc: func(string) (string, error) {
			return machineKey(appName)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &KeyStore{ring: kr}, nil
}

// machineKey derives a stable, machine-bound password for the file
// keyring fallback, hashed per-appName so two apps on one machine never
// share a derived password.
func machineKey(appName string) (string, error) {
	id, err := machineid.ProtectedID(appName)
	if err != nil {
		return "", fmt.Errorf("get machine id: %w", err)
	}
	return id, nil
}

// Store saves a secret value under a key.
func (k *KeyStore) Store(key string, data []byte) error {
	if err := k.ring.Set(keyring.Item{Key: key, Data: data}); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Get retrieves a secret; returns (nil, nil) if not found.
func (k *KeyStore) Get(key string) ([]byte, error) {
	item, err := k.ring.Get(key)
	if err == keyring.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get: %w", err)
	}
	return item.Data, nil
}

// Delete removes a secret. Deleting an absent key is not an error.
func (k *KeyStore) Delete(key string) error {
	if err := k.ring.Remove(key); err != nil && err != keyring.ErrKeyNotFound {
		return fmt.Errorf("keyring remove: %w", err)
	}
	return nil
}
