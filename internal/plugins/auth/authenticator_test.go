package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/roles"
)

func TestVerify_ReturnsFreshUser(t *testing.T) {
	issuer := testIssuer()
	user := activeUser()
	token, _, _ := issuer.Issue(user, time.Hour)

	// The stored role changed after the token was issued.
	stored := activeUser()
	stored.Role = roles.RoleUser
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*User, error) {
			if id != user.ID {
				t.Errorf("unexpected id %q", id)
			}
			return stored, nil
		},
	}

	got, err := NewAuthenticator(issuer, repo).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Role != roles.RoleUser {
		t.Errorf("expected stored role, got %v", got.Role)
	}
	if repo.findByIDCalls != 1 {
		t.Errorf("expected exactly one lookup, got %d", repo.findByIDCalls)
	}
}

func TestVerify_NoCaching(t *testing.T) {
	issuer := testIssuer()
	token, _, _ := issuer.Issue(activeUser(), time.Hour)
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, string) (*User, error) { return activeUser(), nil },
	}
	authn := NewAuthenticator(issuer, repo)

	for i := 0; i < 3; i++ {
		if _, err := authn.Verify(context.Background(), token); err != nil {
			t.Fatal(err)
		}
	}
	if repo.findByIDCalls != 3 {
		t.Errorf("expected 3 lookups for 3 calls, got %d", repo.findByIDCalls)
	}
}

func TestVerify_Failures(t *testing.T) {
	issuer := testIssuer()
	valid, _, _ := issuer.Issue(activeUser(), time.Hour)

	inactive := activeUser()
	inactive.IsActive = false

	tests := []struct {
		name    string
		token   string
		findFn  func(context.Context, string) (*User, error)
		wantErr error
		lookups int
	}{
		{"empty token", "", nil, ErrUnauthenticated, 0},
		{"malformed token", "not-a-token", nil, ErrInvalidToken, 0},
		{"missing user", valid, nil, ErrUserNotFound, 1},
		{"inactive user", valid, func(context.Context, string) (*User, error) { return inactive, nil }, ErrUserNotFound, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{findByIDFn: tt.findFn}
			_, err := NewAuthenticator(issuer, repo).Verify(context.Background(), tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.findByIDCalls != tt.lookups {
				t.Errorf("expected %d lookups, got %d", tt.lookups, repo.findByIDCalls)
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	issuer := testIssuer()
	start := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return start }
	token, _, _ := issuer.Issue(activeUser(), time.Minute)
	issuer.now = time.Now

	repo := &mockUserRepo{}
	_, err := NewAuthenticator(issuer, repo).Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	if repo.findByIDCalls != 0 {
		t.Error("expired token must not reach the user store")
	}
}

func TestVerify_StoreFailureIsInternal(t *testing.T) {
	issuer := testIssuer()
	token, _, _ := issuer.Issue(activeUser(), time.Hour)
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, string) (*User, error) { return nil, errors.New("connection refused") },
	}

	_, err := NewAuthenticator(issuer, repo).Verify(context.Background(), token)
	if apperror.SafeCode(err) != 500 {
		t.Errorf("expected internal error, got %v", err)
	}
}
