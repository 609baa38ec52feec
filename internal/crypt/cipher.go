// Package crypt protects secret values at rest and fingerprints single-use
// tokens. The cipher is AES-256-GCM keyed from the secrets store; tokens are
// random 256-bit values stored only as their SHA-256 digest.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/secrets"
)

// envelopeSeparator splits the hex nonce from the hex ciphertext.
const envelopeSeparator = ":"

// ErrDecryptionFailed is the single error for every decrypt failure. Format,
// encoding and authentication failures are deliberately not distinguished.
var ErrDecryptionFailed = &apperror.AppError{
	Code:    http.StatusInternalServerError,
	Type:    "decryption_failed",
	Message: "stored value could not be decrypted",
}

// Cipher encrypts short strings (SMTP passwords, API credentials) for
// storage. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds the AEAD once from the store's derived key.
func NewCipher(store *secrets.Store) (*Cipher, error) {
	block, err := aes.NewCipher(store.EncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt returns hex(nonce) + ":" + hex(ciphertext). A fresh random nonce
// is drawn for every call. The empty string is returned unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + envelopeSeparator + hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The empty string is returned unchanged; any
// other malformed or tampered envelope yields ErrDecryptionFailed.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", nil
	}

	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 2 {
		return "", ErrDecryptionFailed
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrDecryptionFailed
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrDecryptionFailed
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
