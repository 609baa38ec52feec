package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/minutes/internal/crypt"
	"github.com/keyxmakerx/minutes/internal/metrics"
	"github.com/keyxmakerx/minutes/internal/plugins/admin"
	"github.com/keyxmakerx/minutes/internal/plugins/audit"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/plugins/media"
	"github.com/keyxmakerx/minutes/internal/plugins/permissions"
	"github.com/keyxmakerx/minutes/internal/plugins/settings"
	"github.com/keyxmakerx/minutes/internal/plugins/smtp"
)

// RegisterRoutes builds every plugin and mounts its routes. This is the
// single place where plugins are wired to each other.
func (a *App) RegisterRoutes() error {
	e := a.Echo
	cfg := a.Config
	secure := cfg.SecureCookies()

	e.GET("/healthz", a.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// --- Services ---

	settingsService := settings.NewSettingsService(settings.NewSettingsRepository(a.DB),
		permissions.IsKnown, permissions.AdminRequired()...)
	auditService := audit.NewAuditService(audit.NewEventRepository(a.DB), settingsService)

	cipher, err := crypt.NewCipher(a.Secrets)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}
	smtpService := smtp.NewSMTPService(smtp.NewSMTPRepository(a.DB), cipher)
	notifier := smtp.NewNotifier(smtpService, cfg.BaseURL)

	userRepo := auth.NewUserRepository(a.DB)
	issuer := auth.NewTokenIssuer(a.Secrets, cfg.Auth.SessionTTL)
	authService := auth.NewAuthService(userRepo, issuer, notifier, settingsService)
	authenticator := auth.NewAuthenticator(issuer, userRepo)

	resolver := permissions.NewResolver(settingsService)

	brandingService, err := media.NewBrandingService(settingsService, cfg.Upload.MediaPath)
	if err != nil {
		return fmt.Errorf("creating branding service: %w", err)
	}

	userAdminService := admin.NewUserAdminService(userRepo)

	// --- Routes ---

	requireAuth := auth.RequireAuth(authenticator, secure)
	optionalAuth := auth.OptionalAuth(authenticator)

	auth.RegisterRoutes(e, auth.NewHandler(authService, auditService, secure), a.Limiter, requireAuth, optionalAuth)

	me := e.Group("/api/v1/me", requireAuth)
	adminGroup := e.Group("/api/v1/admin", requireAuth)

	permissions.RegisterRoutes(me, adminGroup, permissions.NewHandler(resolver), resolver)

	settings.RegisterRoutes(adminGroup, settings.NewHandler(settingsService, auditService),
		resolver.RequirePermissionMiddleware(permissions.SettingsManage))
	smtp.RegisterRoutes(adminGroup, smtp.NewHandler(smtpService),
		resolver.RequirePermissionMiddleware(permissions.SettingsManage))
	audit.RegisterRoutes(adminGroup, audit.NewHandler(auditService),
		resolver.RequirePermissionMiddleware(permissions.AuditView))
	admin.RegisterRoutes(adminGroup, admin.NewHandler(userAdminService, auditService),
		resolver.RequirePermissionMiddleware(permissions.UsersManage))
	media.RegisterRoutes(e, adminGroup, media.NewHandler(brandingService), a.Limiter,
		resolver.RequirePermissionMiddleware(permissions.BrandingManage))

	return nil
}

// healthz reports whether the database answers. Redis is only checked when
// it backs the rate limiter.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		status["status"], status["database"] = "degraded", "unreachable"
		code = http.StatusServiceUnavailable
	}
	if a.Redis != nil {
		status["redis"] = "ok"
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["status"], status["redis"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, status)
}
