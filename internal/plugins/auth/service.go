package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/crypt"
	"github.com/keyxmakerx/minutes/internal/locale"
	"github.com/keyxmakerx/minutes/internal/metrics"
	"github.com/keyxmakerx/minutes/internal/roles"
	"github.com/keyxmakerx/minutes/internal/sanitize"
)

// Single-use token lifetimes.
const (
	PasswordResetTTL     = time.Hour
	EmailVerificationTTL = 24 * time.Hour
)

// argon2id parameters tuned for a self-hosted application running on
// modest hardware. These follow OWASP recommendations for argon2id:
// memory=64MB, iterations=3, parallelism=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Notifier delivers the emails that carry raw single-use tokens. The
// raw token never leaves the process any other way.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, user *User, rawToken, locale string) error
	SendVerificationEmail(ctx context.Context, user *User, rawToken, locale string) error
}

// SessionTTLSource supplies the site-configured session lifetime. Zero
// means use the issuer default.
type SessionTTLSource interface {
	SessionTTL(ctx context.Context) time.Duration
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, input LoginInput) (*Session, *User, error)
	IssueSession(ctx context.Context, user *User) (*Session, error)
	InitiatePasswordReset(ctx context.Context, email, locale string) error
	CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (*Session, *User, error)
	RequestEmailVerification(ctx context.Context, user *User, locale string) error
	VerifyEmail(ctx context.Context, rawToken string) (*User, error)
}

// authService implements AuthService with argon2id hashing and stateless
// signed sessions.
type authService struct {
	repo     UserRepository
	issuer   *TokenIssuer
	notifier Notifier
	ttl      SessionTTLSource
	now      func() time.Time
}

// NewAuthService creates a new auth service. ttl may be nil.
func NewAuthService(repo UserRepository, issuer *TokenIssuer, notifier Notifier, ttl SessionTTLSource) AuthService {
	return &authService{
		repo:     repo,
		issuer:   issuer,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register creates a new account. The very first account becomes admin so
// a fresh install can be configured; everyone after starts as user.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := normalizeEmail(input.Email)
	username := sanitize.Text(input.Username)
	if len(username) < 2 {
		return nil, apperror.NewValidation("username must be at least 2 characters")
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         roles.RoleUser,
		IsActive:     true,
		Locale:       locale.Negotiate(input.Locale),
		CreatedAt:    s.now().UTC(),
	}

	// The repository promotes the very first account to admin.
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)

	return user, nil
}

// Login checks credentials and issues a session. Unknown email, wrong
// password and disabled account all return ErrInvalidCredentials, and an
// unknown email still pays for one password hash.
func (s *authService) Login(ctx context.Context, input LoginInput) (*Session, *User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if !isNotFound(err) {
			return nil, nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
		}
		verifyPassword(input.Password, dummyHash())
		metrics.RecordAuthFailure("bad_credentials")
		return nil, nil, ErrInvalidCredentials
	}

	if !verifyPassword(input.Password, user.PasswordHash) || !user.IsActive {
		metrics.RecordAuthFailure("bad_credentials")
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}

// IssueSession signs a session for user, honouring the site's auto-logout
// setting.
func (s *authService) IssueSession(ctx context.Context, user *User) (*Session, error) {
	var ttl time.Duration
	if s.ttl != nil {
		ttl = s.ttl.SessionTTL(ctx)
	}
	token, expiresAt, err := s.issuer.Issue(user, ttl)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// InitiatePasswordReset stores a reset fingerprint for an active account
// and mails the raw token. For an unknown or disabled email it does
// nothing. The caller-visible result must not depend on which case
// applied, so callers ignore the returned error apart from logging it.
func (s *authService) InitiatePasswordReset(ctx context.Context, email, loc string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("finding user for reset: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	raw, err := crypt.GenerateToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetPasswordResetToken(ctx, user.ID, crypt.HashToken(raw), s.now().Add(PasswordResetTTL)); err != nil {
		return err
	}

	if s.notifier == nil {
		return errors.New("no notifier configured")
	}
	if err := s.notifier.SendPasswordResetEmail(ctx, user, raw, locale.Negotiate(loc, user.Locale)); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}

	slog.Info("password reset requested", slog.String("user_id", user.ID))
	return nil
}

// CompletePasswordReset redeems a reset token, sets the new password, and
// signs the user in. The token is consumed by the same statement that
// changes the password.
func (s *authService) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (*Session, *User, error) {
	if rawToken == "" {
		return nil, nil, ErrInvalidLink
	}
	tokenHash := crypt.HashToken(rawToken)

	user, err := s.repo.FindByPasswordResetHash(ctx, tokenHash, s.now())
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrInvalidLink
		}
		return nil, nil, apperror.NewInternal(err)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return nil, nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	ok, err := s.repo.CompletePasswordReset(ctx, user.ID, tokenHash, hash, s.now())
	if err != nil {
		return nil, nil, apperror.NewInternal(err)
	}
	if !ok {
		return nil, nil, ErrInvalidLink
	}
	user.PasswordHash = hash
	user.PasswordResetTokenHash = nil
	user.PasswordResetExpires = nil

	session, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("password reset completed", slog.String("user_id", user.ID))
	return session, user, nil
}

// RequestEmailVerification stores a verification fingerprint for user and
// mails the raw token.
func (s *authService) RequestEmailVerification(ctx context.Context, user *User, loc string) error {
	if user.EmailVerified {
		return apperror.NewConflict("email address is already verified")
	}

	raw, err := crypt.GenerateToken()
	if err != nil {
		return apperror.NewInternal(err)
	}
	if err := s.repo.SetEmailVerificationToken(ctx, user.ID, crypt.HashToken(raw), s.now().Add(EmailVerificationTTL)); err != nil {
		return apperror.NewInternal(err)
	}

	if s.notifier == nil {
		return apperror.NewInternal(errors.New("no notifier configured"))
	}
	if err := s.notifier.SendVerificationEmail(ctx, user, raw, locale.Negotiate(loc, user.Locale)); err != nil {
		return apperror.NewInternal(fmt.Errorf("sending verification email: %w", err))
	}
	return nil
}

// VerifyEmail redeems a verification token.
func (s *authService) VerifyEmail(ctx context.Context, rawToken string) (*User, error) {
	if rawToken == "" {
		return nil, ErrInvalidLink
	}
	tokenHash := crypt.HashToken(rawToken)

	user, err := s.repo.FindByEmailVerificationHash(ctx, tokenHash, s.now())
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidLink
		}
		return nil, apperror.NewInternal(err)
	}

	ok, err := s.repo.MarkEmailVerified(ctx, user.ID, tokenHash)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if !ok {
		return nil, ErrInvalidLink
	}
	user.EmailVerified = true
	user.EmailVerificationTokenHash = nil
	user.EmailVerificationExpires = nil

	slog.Info("email verified", slog.String("user_id", user.ID))
	return user, nil
}

// --- Password Hashing (argon2id) ---

// hashPassword creates an argon2id hash in the PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash), nil
}

// verifyPassword checks a plaintext password against an argon2id hash string.
func verifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(expectedHash, computedHash) == 1
}

var (
	dummyOnce sync.Once
	dummyVal  string
)

// dummyHash is verified against when the email is unknown so both paths
// cost one argon2id computation.
func dummyHash() string {
	dummyOnce.Do(func() {
		dummyVal, _ = hashPassword("timing-equalizer")
	})
	return dummyVal
}

// --- Helpers ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isNotFound reports whether err is a 404 AppError.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == http.StatusNotFound
}
