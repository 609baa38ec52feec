package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/plugins/audit"
)

// newTestHandler builds a Handler whose background work is tracked by wg.
func newTestHandler(svc AuthService, aud audit.AuditService, wg *sync.WaitGroup) *Handler {
	h := NewHandler(svc, aud, true)
	h.async = func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	return h
}

func jsonRequest(method, path, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func TestForgotPassword_IndistinguishableResponses(t *testing.T) {
	e := echo.New()
	user := activeUser()
	notifier := &mockNotifier{delay: 300 * time.Millisecond}
	aud := &mockAudit{}
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(statefulRepo(user), notifier), aud, &wg)

	send := func(email string) ([]byte, time.Duration) {
		req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"`+email+`"}`)
		c := e.NewContext(req, rec)
		start := time.Now()
		if err := h.ForgotPassword(c); err != nil {
			t.Fatalf("ForgotPassword(%s): %v", email, err)
		}
		elapsed := time.Since(start)
		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
		return rec.Body.Bytes(), elapsed
	}

	existingBody, existingTime := send(user.Email)
	missingBody, missingTime := send("ghost@example.com")

	if !bytes.Equal(existingBody, missingBody) {
		t.Errorf("response bodies differ:\n%s\n%s", existingBody, missingBody)
	}
	// The slow email send must not show up in the response time.
	if existingTime > 150*time.Millisecond || missingTime > 150*time.Millisecond {
		t.Errorf("responses waited on background work: %v / %v", existingTime, missingTime)
	}

	wg.Wait()
	if len(notifier.resetTokens) != 1 {
		t.Errorf("expected exactly one reset email, got %d", len(notifier.resetTokens))
	}
	if got := aud.types(); len(got) != 2 || got[0] != audit.EventPasswordResetRequested {
		t.Errorf("expected two reset_requested events, got %v", got)
	}
}

func TestForgotPassword_LocalizedMessage(t *testing.T) {
	e := echo.New()
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(&mockUserRepo{}, &mockNotifier{}), &mockAudit{}, &wg)

	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"x@example.com"}`)
	req.Header.Set("Accept-Language", "de-DE")
	if err := h.ForgotPassword(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	if !strings.Contains(rec.Body.String(), "Falls ein Konto") {
		t.Errorf("expected German message, got %s", rec.Body.String())
	}
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	e := echo.New()
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(&mockUserRepo{}, nil), &mockAudit{}, &wg)

	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"  "}`)
	err := h.ForgotPassword(e.NewContext(req, rec))
	assertAppError(t, err, 422)
}

func TestLogin_SetsCookieAndAudits(t *testing.T) {
	hash, err := hashPassword("secret-password")
	if err != nil {
		t.Fatal(err)
	}
	user := activeUser()
	user.PasswordHash = hash

	e := echo.New()
	aud := &mockAudit{}
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(statefulRepo(user), nil), aud, &wg)

	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com","password":"secret-password"}`)
	if err := h.Login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected cookie flags: %+v", cookie)
	}
	if cookie.Value == "" || cookie.MaxAge <= 0 {
		t.Errorf("expected a live cookie, got %+v", cookie)
	}
	if strings.Contains(rec.Body.String(), "argon2id") {
		t.Error("password hash leaked into response")
	}

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com","password":"wrong"}`)
	if err := h.Login(e.NewContext(req, rec)); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	got := aud.types()
	if len(got) != 2 || got[0] != audit.EventLoginSuccess || got[1] != audit.EventLoginFailed {
		t.Errorf("unexpected audit events %v", got)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	e := echo.New()
	aud := &mockAudit{}
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(&mockUserRepo{}, nil), aud, &wg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	SetUser(c, activeUser())

	if err := h.Logout(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected clearing cookie")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("expected empty expired cookie, got %+v", cookie)
	}
	if got := aud.types(); len(got) != 1 || got[0] != audit.EventLogout {
		t.Errorf("unexpected audit events %v", got)
	}
}

func TestLogout_Anonymous(t *testing.T) {
	e := echo.New()
	aud := &mockAudit{}
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(&mockUserRepo{}, nil), aud, &wg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if sessionCookie(rec) == nil {
		t.Error("expected cookie to be cleared even without a session")
	}
	if len(aud.types()) != 0 {
		t.Error("anonymous logout must not be audited")
	}
}

func TestResetPassword_Handler(t *testing.T) {
	user := activeUser()
	notifier := &mockNotifier{}
	svc := newTestService(statefulRepo(user), notifier)
	if err := svc.InitiatePasswordReset(context.Background(), user.Email, ""); err != nil {
		t.Fatal(err)
	}
	raw := notifier.lastResetToken()

	e := echo.New()
	var wg sync.WaitGroup
	h := newTestHandler(svc, &mockAudit{}, &wg)
	body := `{"token":"` + raw + `","password":"brand-new-password"}`

	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/reset-password", body)
	if err := h.ResetPassword(e.NewContext(req, rec)); err != nil {
		t.Fatalf("first reset: %v", err)
	}
	if sessionCookie(rec) == nil {
		t.Error("expected the user to be signed in")
	}

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/reset-password", body)
	if err := h.ResetPassword(e.NewContext(req, rec)); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("expected ErrInvalidLink on reuse, got %v", err)
	}
}

func TestResetPassword_Validation(t *testing.T) {
	e := echo.New()
	var wg sync.WaitGroup
	h := newTestHandler(newTestService(&mockUserRepo{}, nil), &mockAudit{}, &wg)

	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/reset-password", `{"token":"","password":"brand-new-password"}`)
	if err := h.ResetPassword(e.NewContext(req, rec)); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("expected ErrInvalidLink, got %v", err)
	}

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/reset-password", `{"token":"abc","password":"short"}`)
	assertAppError(t, h.ResetPassword(e.NewContext(req, rec)), 422)
}

func TestValidateRegisterRequest(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
		ok   bool
	}{
		{"valid", RegisterRequest{"a@b.c", "al", "password1"}, true},
		{"missing email", RegisterRequest{"", "al", "password1"}, false},
		{"bad email", RegisterRequest{"nope", "al", "password1"}, false},
		{"short username", RegisterRequest{"a@b.c", "a", "password1"}, false},
		{"short password", RegisterRequest{"a@b.c", "al", "pw"}, false},
		{"long password", RegisterRequest{"a@b.c", "al", strings.Repeat("x", 129)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validateRegisterRequest(&tt.req)
			if (msg == "") != tt.ok {
				t.Errorf("validateRegisterRequest() = %q, want ok=%v", msg, tt.ok)
			}
		})
	}
}
