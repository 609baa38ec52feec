package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keyxmakerx/minutes/internal/roles"
	"github.com/keyxmakerx/minutes/internal/secrets"
)

// DefaultSessionTTL is how long a session lasts when neither the caller nor
// the site settings choose a lifetime.
const DefaultSessionTTL = 8 * time.Hour

// Claims is the signed session payload. The subject is the user ID.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens with the key held in
// the secrets store. It keeps no state besides the key.
type TokenIssuer struct {
	key        []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer. A non-positive defaultTTL means
// DefaultSessionTTL.
func NewTokenIssuer(store *secrets.Store, defaultTTL time.Duration) *TokenIssuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultSessionTTL
	}
	return &TokenIssuer{
		key:        store.SigningKey(),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Issue signs a session token for user. A non-positive ttl means the
// issuer's default lifetime.
func (i *TokenIssuer) Issue(user *User, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	now := i.now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Parse verifies the signature and expiry of a session token. A token whose
// signature checks out but whose expiry has passed yields ErrTokenExpired;
// anything else wrong yields ErrInvalidToken.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.WithInternal(err)
		}
		return nil, ErrInvalidToken.WithInternal(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RoleClaim returns the role carried in the token. Authorization never
// relies on it; Verify reloads the stored role.
func (c *Claims) RoleClaim() roles.Role {
	return roles.Parse(c.Role)
}
