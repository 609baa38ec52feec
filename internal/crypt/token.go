package crypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of a single-use token. 32 bytes = 256 bits,
// hex-encoded to 64 characters.
const TokenBytes = 32

// GenerateToken returns a cryptographically random hex token. The raw value
// is handed to the user once and never stored.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 fingerprint stored in place of a raw
// single-use token. An unkeyed fast digest is sufficient only because the
// input carries TokenBytes of entropy. Do not use this for passwords.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
