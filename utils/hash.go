package utils

import (
	"crypto/sha256"
)

// Hash calculates the SHA-256 hash of the input data.
func Hash(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}
