package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/metrics"
)

// Authenticator turns a session token into the current stored user.
type Authenticator struct {
	issuer *TokenIssuer
	repo   UserRepository
}

// NewAuthenticator creates an authenticator over the given issuer and user
// store.
func NewAuthenticator(issuer *TokenIssuer, repo UserRepository) *Authenticator {
	return &Authenticator{issuer: issuer, repo: repo}
}

// Verify checks the token and loads its user. Every call performs exactly
// one user lookup, so a role change or deactivation applies to the next
// request, even though the token itself stays valid until it expires.
//
// Errors are ErrUnauthenticated, ErrInvalidToken, ErrTokenExpired,
// ErrUserNotFound, or an internal error when the user store fails.
func (a *Authenticator) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		metrics.RecordAuthFailure(ErrUnauthenticated.Type)
		return nil, ErrUnauthenticated
	}

	claims, err := a.issuer.Parse(token)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			metrics.RecordAuthFailure(appErr.Type)
		}
		return nil, err
	}

	user, err := a.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			metrics.RecordAuthFailure(ErrUserNotFound.Type)
			return nil, ErrUserNotFound
		}
		return nil, apperror.NewInternal(err)
	}
	if !user.IsActive {
		metrics.RecordAuthFailure(ErrUserNotFound.Type)
		return nil, ErrUserNotFound
	}
	if claimed := claims.RoleClaim(); claimed != user.Role {
		slog.Debug("session role differs from stored role",
			slog.String("user_id", user.ID),
			slog.String("token_role", claimed.String()),
			slog.String("stored_role", user.Role.String()),
		)
	}

	return user, nil
}
