package auth

import (
	"net/http"

	"github.com/keyxmakerx/minutes/internal/apperror"
)

// Authentication failures. Every one maps to 401 and the same generic
// client message; the Type distinguishes them in logs and metrics.
var (
	ErrUnauthenticated = &apperror.AppError{Code: http.StatusUnauthorized, Type: "unauthenticated", Message: "authentication required"}
	ErrInvalidToken    = &apperror.AppError{Code: http.StatusUnauthorized, Type: "invalid_token", Message: "authentication required"}
	ErrTokenExpired    = &apperror.AppError{Code: http.StatusUnauthorized, Type: "token_expired", Message: "authentication required"}
	ErrUserNotFound    = &apperror.AppError{Code: http.StatusUnauthorized, Type: "user_not_found", Message: "authentication required"}
)

// ErrInvalidCredentials is returned by Login for an unknown email, a wrong
// password, or a disabled account alike.
var ErrInvalidCredentials = &apperror.AppError{Code: http.StatusUnauthorized, Type: "invalid_credentials", Message: "invalid email or password"}

// ErrInvalidLink is returned when a single-use token is unknown, expired,
// or already redeemed.
var ErrInvalidLink = &apperror.AppError{Code: http.StatusBadRequest, Type: "invalid_link", Message: "invalid or expired link"}

// ErrEmailTaken is returned when an account with the email already exists.
var ErrEmailTaken = &apperror.AppError{Code: http.StatusConflict, Type: "conflict", Message: "an account with this email already exists"}

// ErrLastAdmin is returned when a role or active-flag change would leave no
// active admin.
var ErrLastAdmin = &apperror.AppError{Code: http.StatusBadRequest, Type: "last_admin", Message: "cannot remove the last active admin"}
