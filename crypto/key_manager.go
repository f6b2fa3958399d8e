package crypto

import (
	"fmt"
	"os"
	"path/filepath"
)

// stakerKeyFile is the filename of the staker authority key.
const stakerKeyFile = "staker.key"

// KeyManager handles storage and retrieval of the staker authority key.
type KeyManager struct {
	keyDir string
	staker *KeyPair
}

// NewKeyManager creates a key manager rooted at the given directory,
// loading the staker key if one exists.
func NewKeyManager(keyDir string) (*KeyManager, error) {
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	km := &KeyManager{keyDir: keyDir}

	keyPath := filepath.Join(keyDir, stakerKeyFile)
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return km, nil
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	keyPair, err := LoadKeyPair(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to load staker key: %w", err)
	}
	km.staker = keyPair

	return km, nil
}

// StakerKey returns the staker authority keypair, if present.
func (km *KeyManager) StakerKey() (*KeyPair, bool) {
	return km.staker, km.staker != nil
}

// CreateStakerKey generates and persists a new staker authority key.
// Refuses to overwrite an existing key.
func (km *KeyManager) CreateStakerKey() (*KeyPair, error) {
	if km.staker != nil {
		return nil, fmt.Errorf("staker key already exists in %s", km.keyDir)
	}

	keyPair, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	keyPath := filepath.Join(km.keyDir, stakerKeyFile)
	if err := os.WriteFile(keyPath, keyPair.PrivateKey, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	km.staker = keyPair
	return keyPair, nil
}
