package auth

import (
	"context"
	"sync"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/config"
	"github.com/keyxmakerx/minutes/internal/plugins/audit"
	"github.com/keyxmakerx/minutes/internal/roles"
	"github.com/keyxmakerx/minutes/internal/secrets"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn                      func(ctx context.Context, user *User) error
	findByIDFn                    func(ctx context.Context, id string) (*User, error)
	findByEmailFn                 func(ctx context.Context, email string) (*User, error)
	emailExistsFn                 func(ctx context.Context, email string) (bool, error)
	setPasswordResetTokenFn       func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	findByPasswordResetHashFn     func(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	completePasswordResetFn       func(ctx context.Context, userID, tokenHash, passwordHash string, now time.Time) (bool, error)
	setEmailVerificationTokenFn   func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	findByEmailVerificationHashFn func(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	markEmailVerifiedFn           func(ctx context.Context, userID, tokenHash string) (bool, error)

	findByIDCalls int
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	m.findByIDCalls++
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateLastLogin(context.Context, string) error { return nil }

func (m *mockUserRepo) SetPasswordResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if m.setPasswordResetTokenFn != nil {
		return m.setPasswordResetTokenFn(ctx, userID, tokenHash, expiresAt)
	}
	return nil
}

func (m *mockUserRepo) FindByPasswordResetHash(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	if m.findByPasswordResetHashFn != nil {
		return m.findByPasswordResetHashFn(ctx, tokenHash, now)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) CompletePasswordReset(ctx context.Context, userID, tokenHash, passwordHash string, now time.Time) (bool, error) {
	if m.completePasswordResetFn != nil {
		return m.completePasswordResetFn(ctx, userID, tokenHash, passwordHash, now)
	}
	return false, nil
}

func (m *mockUserRepo) SetEmailVerificationToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if m.setEmailVerificationTokenFn != nil {
		return m.setEmailVerificationTokenFn(ctx, userID, tokenHash, expiresAt)
	}
	return nil
}

func (m *mockUserRepo) FindByEmailVerificationHash(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	if m.findByEmailVerificationHashFn != nil {
		return m.findByEmailVerificationHashFn(ctx, tokenHash, now)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) MarkEmailVerified(ctx context.Context, userID, tokenHash string) (bool, error) {
	if m.markEmailVerifiedFn != nil {
		return m.markEmailVerifiedFn(ctx, userID, tokenHash)
	}
	return false, nil
}

func (m *mockUserRepo) ListUsers(context.Context, int, int) ([]User, int, error) { return nil, 0, nil }
func (m *mockUserRepo) UpdateRole(context.Context, string, roles.Role) error     { return nil }
func (m *mockUserRepo) UpdateIsActive(context.Context, string, bool) error       { return nil }
func (m *mockUserRepo) CountActiveAdmins(context.Context) (int, error)           { return 1, nil }

// statefulRepo wires a mockUserRepo to a single in-memory user so the
// single-use token flows behave like the SQL implementation.
func statefulRepo(user *User) *mockUserRepo {
	var mu sync.Mutex
	copyUser := func() *User { u := *user; return &u }

	return &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*User, error) {
			mu.Lock()
			defer mu.Unlock()
			if id != user.ID {
				return nil, apperror.NewNotFound("user not found")
			}
			return copyUser(), nil
		},
		findByEmailFn: func(_ context.Context, email string) (*User, error) {
			mu.Lock()
			defer mu.Unlock()
			if email != user.Email {
				return nil, apperror.NewNotFound("user not found")
			}
			return copyUser(), nil
		},
		setPasswordResetTokenFn: func(_ context.Context, _ string, hash string, exp time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			user.PasswordResetTokenHash, user.PasswordResetExpires = &hash, &exp
			return nil
		},
		findByPasswordResetHashFn: func(_ context.Context, hash string, now time.Time) (*User, error) {
			mu.Lock()
			defer mu.Unlock()
			if user.PasswordResetTokenHash == nil || *user.PasswordResetTokenHash != hash ||
				!user.PasswordResetExpires.After(now) || !user.IsActive {
				return nil, apperror.NewNotFound("user not found")
			}
			return copyUser(), nil
		},
		completePasswordResetFn: func(_ context.Context, id, hash, pw string, now time.Time) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if id != user.ID || user.PasswordResetTokenHash == nil || *user.PasswordResetTokenHash != hash ||
				!user.PasswordResetExpires.After(now) || !user.IsActive {
				return false, nil
			}
			user.PasswordHash = pw
			user.PasswordResetTokenHash, user.PasswordResetExpires = nil, nil
			return true, nil
		},
		setEmailVerificationTokenFn: func(_ context.Context, _ string, hash string, exp time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			user.EmailVerificationTokenHash, user.EmailVerificationExpires = &hash, &exp
			return nil
		},
		findByEmailVerificationHashFn: func(_ context.Context, hash string, now time.Time) (*User, error) {
			mu.Lock()
			defer mu.Unlock()
			if user.EmailVerificationTokenHash == nil || *user.EmailVerificationTokenHash != hash ||
				!user.EmailVerificationExpires.After(now) {
				return nil, apperror.NewNotFound("user not found")
			}
			return copyUser(), nil
		},
		markEmailVerifiedFn: func(_ context.Context, id, hash string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if id != user.ID || user.EmailVerificationTokenHash == nil || *user.EmailVerificationTokenHash != hash {
				return false, nil
			}
			user.EmailVerified = true
			user.EmailVerificationTokenHash, user.EmailVerificationExpires = nil, nil
			return true, nil
		},
	}
}

// --- Mock Notifier ---

// mockNotifier captures the raw tokens it is asked to send.
type mockNotifier struct {
	mu           sync.Mutex
	resetTokens  []string
	verifyTokens []string
	locales      []string
	err          error
	delay        time.Duration
}

func (m *mockNotifier) SendPasswordResetEmail(_ context.Context, _ *User, rawToken, locale string) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, rawToken)
	m.locales = append(m.locales, locale)
	return m.err
}

func (m *mockNotifier) SendVerificationEmail(_ context.Context, _ *User, rawToken, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens = append(m.verifyTokens, rawToken)
	m.locales = append(m.locales, locale)
	return m.err
}

func (m *mockNotifier) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		return ""
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

// --- Mock Audit ---

type mockAudit struct {
	mu     sync.Mutex
	events []*audit.SecurityEvent
}

func (m *mockAudit) Record(_ context.Context, ev *audit.SecurityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockAudit) ListEvents(context.Context, string, int) (*audit.EventPage, error) {
	return &audit.EventPage{}, nil
}

func (m *mockAudit) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// --- Fixtures ---

func testSecrets() *secrets.Store {
	s, err := secrets.New(config.AuthConfig{
		SecretKey:     "test-signing-key-that-is-long-enough",
		EncryptionKey: "test-encryption-passphrase",
	})
	if err != nil {
		panic(err)
	}
	return s
}

func testIssuer() *TokenIssuer {
	return NewTokenIssuer(testSecrets(), 0)
}

// fixedTTL implements SessionTTLSource.
type fixedTTL time.Duration

func (f fixedTTL) SessionTTL(context.Context) time.Duration { return time.Duration(f) }

func activeUser() *User {
	return &User{
		ID:       "11111111-1111-4111-8111-111111111111",
		Email:    "alice@example.com",
		Username: "alice",
		Role:     roles.RoleModerator,
		IsActive: true,
		Locale:   "en",
	}
}
