package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/middleware"
	"github.com/keyxmakerx/minutes/internal/ratelimit"
)

// Per-client limits on the abuse-prone endpoints.
const (
	loginLimit    = 10
	registerLimit = 5
	resetLimit    = 5
	verifyLimit   = 10
	limitWindow   = 15 * time.Minute
)

// RegisterRoutes mounts the auth endpoints under /api/v1. requireAuth and
// optionalAuth are the middleware built from RequireAuth and OptionalAuth.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter *ratelimit.Limiter, requireAuth, optionalAuth echo.MiddlewareFunc) {
	g := e.Group("/api/v1/auth")

	g.POST("/register", h.Register, middleware.RateLimit(limiter, "register", registerLimit, limitWindow))
	g.POST("/login", h.Login, middleware.RateLimit(limiter, "login", loginLimit, time.Minute))
	g.POST("/logout", h.Logout, optionalAuth)

	g.POST("/forgot-password", h.ForgotPassword, middleware.RateLimit(limiter, "forgot_password", resetLimit, limitWindow))
	g.POST("/reset-password", h.ResetPassword, middleware.RateLimit(limiter, "reset_password", resetLimit, limitWindow))

	g.POST("/verify-email", h.VerifyEmail, middleware.RateLimit(limiter, "verify_email", verifyLimit, limitWindow))
	g.POST("/verify-email/request", h.RequestVerification,
		middleware.RateLimit(limiter, "verify_email_request", resetLimit, limitWindow),
		requireAuth,
	)

	e.GET("/api/v1/me", h.Me, requireAuth)
}
