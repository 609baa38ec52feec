// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, secrets, rate
// limiter, Echo instance) and wires the security plugins together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/config"
	"github.com/keyxmakerx/minutes/internal/locale"
	"github.com/keyxmakerx/minutes/internal/middleware"
	"github.com/keyxmakerx/minutes/internal/ratelimit"
	"github.com/keyxmakerx/minutes/internal/secrets"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis is nil unless the redis rate limit backend is selected.
	Redis *redis.Client

	// Secrets holds the signing and encryption keys.
	Secrets *secrets.Store

	// Limiter is shared by every rate-limited route.
	Limiter *ratelimit.Limiter

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client, store *secrets.Store, limiter *ratelimit.Limiter) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() only honours forwarding headers from these networks. Audit
	// events and request logs use it; the rate limiter keys on the raw
	// X-Forwarded-For value instead.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Secrets: store,
		Limiter: limiter,
		Echo:    e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (CSRF) runs last.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	a.Echo.Use(middleware.RequestLogger())

	// HSTS only when cookies are Secure, i.e. the deployment is on TLS.
	a.Echo.Use(middleware.SecurityHeaders(a.Config.SecureCookies()))

	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   a.Config.CORSOrigins,
		AllowCredentials: true,
	}))

	// Double-submit cookie on state-changing requests. Bearer clients are
	// exempt inside the middleware.
	a.Echo.Use(middleware.CSRF(a.Config.SecureCookies()))
}

// errorHandler maps errors to JSON responses. Authentication, permission,
// rate limit and internal failures get a fixed localized message so the
// body never reveals which check failed.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := ""
	errType := ""

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		errType = appErr.Type

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if generic := genericMessageKey(code, errType); generic != "" {
		message = locale.Message(middleware.RequestLocale(c), generic)
	}
	if message == "" {
		message = http.StatusText(code)
	}

	body := map[string]string{
		"error":   http.StatusText(code),
		"message": message,
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if err := c.JSON(code, body); err != nil {
		slog.Error("writing error response", slog.Any("error", err))
	}
}

// genericMessageKey returns the locale key that replaces an error's own
// message, or "" to keep it. Invalid credentials keep their message: it is
// already identical for every cause.
func genericMessageKey(code int, errType string) string {
	switch {
	case errType == "invalid_link":
		return locale.InvalidLink
	case errType == "invalid_credentials":
		return ""
	case code == http.StatusUnauthorized:
		return locale.Unauthorized
	case code == http.StatusForbidden:
		return locale.Forbidden
	case code == http.StatusTooManyRequests:
		return locale.RateLimited
	case code >= http.StatusInternalServerError:
		return locale.Internal
	default:
		return ""
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting minutes server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
