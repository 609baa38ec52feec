package smtp

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/keyxmakerx/minutes/internal/plugins/auth"
)

// mockMail captures SendMail calls.
type mockMail struct {
	to      []string
	subject string
	body    string
}

func (m *mockMail) SendMail(_ context.Context, to []string, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func (m *mockMail) IsConfigured(context.Context) bool { return true }

func TestNotifier_PasswordReset(t *testing.T) {
	mail := &mockMail{}
	n := NewNotifier(mail, "https://minutes.example.com/")
	user := &auth.User{Email: "alice@example.com", Username: "alice"}

	raw := "tok+en/with=chars"
	if err := n.SendPasswordResetEmail(context.Background(), user, raw, "en"); err != nil {
		t.Fatal(err)
	}

	if mail.to[0] != user.Email {
		t.Errorf("unexpected recipient %v", mail.to)
	}
	wantLink := "https://minutes.example.com/reset-password?token=" + url.QueryEscape(raw)
	if !strings.Contains(mail.body, wantLink) {
		t.Errorf("body missing link %q:\n%s", wantLink, mail.body)
	}
	if !strings.Contains(mail.body, "1 hour") || !strings.Contains(mail.subject, "Reset") {
		t.Errorf("unexpected English text: %s / %s", mail.subject, mail.body)
	}
}

func TestNotifier_Localized(t *testing.T) {
	mail := &mockMail{}
	n := NewNotifier(mail, "https://minutes.example.com")
	user := &auth.User{Email: "bob@example.com", Username: "bob"}

	if err := n.SendVerificationEmail(context.Background(), user, "abc", "de-AT"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mail.subject, "Bestätigen") || !strings.Contains(mail.body, "24 Stunden") {
		t.Errorf("expected German text, got %s / %s", mail.subject, mail.body)
	}
	if !strings.Contains(mail.body, "https://minutes.example.com/verify-email?token=abc") {
		t.Errorf("body missing verify link:\n%s", mail.body)
	}

	if err := n.SendVerificationEmail(context.Background(), user, "abc", "fr"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mail.subject, "Confirm") {
		t.Errorf("expected English fallback, got %s", mail.subject)
	}
}
