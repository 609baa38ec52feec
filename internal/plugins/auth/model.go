// Package auth proves who is calling. It issues and verifies signed session
// tokens, checks credentials, and runs the single-use token flows for
// password reset and email verification.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"time"

	"github.com/keyxmakerx/minutes/internal/roles"
)

// User is an account as stored in the users table. Verify always returns a
// freshly loaded User, never one rebuilt from token claims.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	Role          roles.Role `json:"role"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	Locale        string     `json:"locale"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`

	// Single-use secrets. Each hash is written and cleared together with
	// its expiry. Never serialized.
	PasswordResetTokenHash     *string    `json:"-"`
	PasswordResetExpires       *time.Time `json:"-"`
	EmailVerificationTokenHash *string    `json:"-"`
	EmailVerificationExpires   *time.Time `json:"-"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest is the body of POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ForgotPasswordRequest is the body of POST /api/v1/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest is the body of POST /api/v1/auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

// VerifyEmailRequest is the body of POST /api/v1/auth/verify-email.
type VerifyEmailRequest struct {
	Token string `json:"token" form:"token"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the validated input for creating a new user.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Locale   string
}

// LoginInput is the validated input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// Session is a freshly issued session token and when it stops being valid.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
