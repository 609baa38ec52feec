package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/locale"
	"github.com/keyxmakerx/minutes/internal/middleware"
	"github.com/keyxmakerx/minutes/internal/plugins/audit"
)

// SessionCookieName is the HTTP cookie that carries the session token.
const SessionCookieName = "minutes_session"

// backgroundTimeout bounds the detached password-reset work.
const backgroundTimeout = 30 * time.Second

// Handler handles HTTP requests for authentication. Handlers are thin:
// they bind the request, call the service, and write the response.
type Handler struct {
	service       AuthService
	audit         audit.AuditService
	secureCookies bool

	// async runs work that must not delay the response. Tests replace it.
	async func(func())
}

// NewHandler creates a new auth handler. secureCookies sets the Secure
// flag on the session cookie.
func NewHandler(service AuthService, auditSvc audit.AuditService, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		audit:         auditSvc,
		secureCookies: secureCookies,
		async:         func(f func()) { go f() },
	}
}

// Register creates an account and signs it in (POST /api/v1/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if msg := validateRegisterRequest(&req); msg != "" {
		return apperror.NewValidation(msg)
	}

	ctx := c.Request().Context()
	loc := middleware.RequestLocale(c)
	user, err := h.service.Register(ctx, RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Locale:   loc,
	})
	if err != nil {
		return err
	}

	session, err := h.service.IssueSession(ctx, user)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, session)

	h.async(func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		if err := h.service.RequestEmailVerification(bg, user, loc); err != nil {
			slog.Warn("sending verification email after registration failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		}
	})

	return c.JSON(http.StatusCreated, map[string]any{
		"user":    user,
		"session": session,
	})
}

// Login checks credentials and sets the session cookie
// (POST /api/v1/auth/login). The token is also returned in the body for
// clients that send it as a bearer header.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	session, user, err := h.service.Login(ctx, LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		if apperror.SafeCode(err) == http.StatusUnauthorized {
			ev := audit.NewEvent(c, audit.EventLoginFailed)
			ev.Details = map[string]any{"email": normalizeEmail(req.Email)}
			h.audit.Record(ctx, ev)
		}
		return err
	}

	h.setSessionCookie(c, session)

	ev := audit.NewEvent(c, audit.EventLoginSuccess)
	ev.UserID = user.ID
	h.audit.Record(ctx, ev)

	return c.JSON(http.StatusOK, map[string]any{
		"user":    user,
		"session": session,
	})
}

// Logout overwrites the session cookie with an expired one
// (POST /api/v1/auth/logout). Sessions are not stored server-side, so a
// bearer client simply discards its token.
func (h *Handler) Logout(c echo.Context) error {
	h.clearSessionCookie(c)

	if user := GetUser(c); user != nil {
		ev := audit.NewEvent(c, audit.EventLogout)
		ev.UserID = user.ID
		h.audit.Record(c.Request().Context(), ev)
	}

	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user (GET /api/v1/me).
func (h *Handler) Me(c echo.Context) error {
	user := GetUser(c)
	if user == nil {
		return ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, user)
}

// ForgotPassword starts a password reset (POST /api/v1/auth/forgot-password).
//
// The response is the same fixed payload whether or not the email belongs to
// an account, and it is written before any lookup happens: the lookup, token
// storage and email dispatch run detached from the request so neither the
// body nor the latency reveals anything.
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return apperror.NewValidation("email is required")
	}

	loc := middleware.RequestLocale(c)
	ctx := context.WithoutCancel(c.Request().Context())
	ev := audit.NewEvent(c, audit.EventPasswordResetRequested)
	ev.Details = map[string]any{"email": normalizeEmail(email)}

	h.async(func() {
		bg, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		if err := h.service.InitiatePasswordReset(bg, email, loc); err != nil {
			slog.Error("password reset request failed", slog.Any("error", err))
		}
		h.audit.Record(bg, ev)
	})

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": locale.Message(loc, locale.ResetRequested),
	})
}

// ResetPassword redeems a reset token, sets the new password and signs the
// user in (POST /api/v1/auth/reset-password).
func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Token == "" {
		return ErrInvalidLink
	}
	if msg := validatePassword(req.Password); msg != "" {
		return apperror.NewValidation(msg)
	}

	ctx := c.Request().Context()
	session, user, err := h.service.CompletePasswordReset(ctx, req.Token, req.Password)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, session)

	ev := audit.NewEvent(c, audit.EventPasswordResetCompleted)
	ev.UserID = user.ID
	h.audit.Record(ctx, ev)

	return c.JSON(http.StatusOK, map[string]any{
		"user":    user,
		"session": session,
	})
}

// RequestVerification mails a fresh verification link to the signed-in
// user (POST /api/v1/auth/verify-email/request).
func (h *Handler) RequestVerification(c echo.Context) error {
	user := GetUser(c)
	if user == nil {
		return ErrUnauthenticated
	}
	if err := h.service.RequestEmailVerification(c.Request().Context(), user, middleware.RequestLocale(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

// VerifyEmail redeems a verification token (POST /api/v1/auth/verify-email).
func (h *Handler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	user, err := h.service.VerifyEmail(ctx, req.Token)
	if err != nil {
		return err
	}

	ev := audit.NewEvent(c, audit.EventEmailVerified)
	ev.UserID = user.ID
	h.audit.Record(ctx, ev)

	return c.JSON(http.StatusOK, user)
}

// --- Cookie helpers ---

// setSessionCookie sets the session cookie to expire with the token.
func (h *Handler) setSessionCookie(c echo.Context, session *Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Expires:  session.ExpiresAt,
	})
}

// clearSessionCookie replaces the cookie with an empty, already expired one.
func (h *Handler) clearSessionCookie(c echo.Context) {
	clearSessionCookie(c, h.secureCookies)
}

func clearSessionCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// --- Validation helpers ---

func validateRegisterRequest(req *RegisterRequest) string {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return "email is required"
	}
	if len(email) > 255 || !strings.Contains(email, "@") {
		return "email is invalid"
	}
	username := strings.TrimSpace(req.Username)
	if len(username) < 2 {
		return "username must be at least 2 characters"
	}
	if len(username) > 100 {
		return "username must be at most 100 characters"
	}
	return validatePassword(req.Password)
}

func validatePassword(password string) string {
	if password == "" {
		return "password is required"
	}
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	if len(password) > 128 {
		return "password must be at most 128 characters"
	}
	return ""
}
