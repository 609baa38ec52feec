// Package secrets holds the process-wide secret material: the session
// signing key and the symmetric encryption key. A Store is built once in
// main from configuration and handed to every component that needs a key,
// so there is no lazily-initialized global to race on.
package secrets

import (
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/minutes/internal/config"
)

// EncryptionKeySize is the AES-256 key length in bytes.
const EncryptionKeySize = sha256.Size

// redacted is what a Store prints as in logs and fmt output.
const redacted = "[REDACTED]"

// Store is an immutable holder for derived key material.
type Store struct {
	signingKey    []byte
	encryptionKey [EncryptionKeySize]byte
}

// New builds a Store from the auth config. Both values must be non-empty;
// the encryption key is derived from the passphrase with a single SHA-256
// digest. Returns an error wrapping config.ErrConfigurationMissing naming
// the missing variable.
func New(cfg config.AuthConfig) (*Store, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: SECRET_KEY is not set", config.ErrConfigurationMissing)
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: ENCRYPTION_KEY is not set", config.ErrConfigurationMissing)
	}
	return &Store{
		signingKey:    []byte(cfg.SecretKey),
		encryptionKey: sha256.Sum256([]byte(cfg.EncryptionKey)),
	}, nil
}

// SigningKey returns a copy of the HMAC key used for session tokens.
func (s *Store) SigningKey() []byte {
	out := make([]byte, len(s.signingKey))
	copy(out, s.signingKey)
	return out
}

// EncryptionKey returns a copy of the derived 256-bit cipher key.
func (s *Store) EncryptionKey() []byte {
	out := make([]byte, EncryptionKeySize)
	copy(out, s.encryptionKey[:])
	return out
}

// String keeps key bytes out of fmt output.
func (s *Store) String() string { return redacted }

// LogValue keeps key bytes out of slog output.
func (s *Store) LogValue() slog.Value { return slog.StringValue(redacted) }
