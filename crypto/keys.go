package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/stakeops/rebalancer/core/types"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
)

// KeyPair is an ed25519 keypair used as the staker authority.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return &KeyPair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
	}, nil
}

// LoadKeyPair reconstructs a keypair from raw private key bytes.
func LoadKeyPair(privateKeyBytes []byte) (*KeyPair, error) {
	if len(privateKeyBytes) != PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}

	privateKey := ed25519.PrivateKey(privateKeyBytes)
	publicKey := privateKey.Public().(ed25519.PublicKey)

	return &KeyPair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
	}, nil
}

// Address returns the keypair's public key as a ledger Pubkey.
func (kp *KeyPair) Address() types.Pubkey {
	pk, _ := types.PubkeyFromBytes(kp.PublicKey)
	return pk
}

// Sign signs the message with the private key.
func (kp *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

// Verify checks a signature over message against a public key.
func Verify(publicKey types.Pubkey, message, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(publicKey[:]), message, signature)
}
