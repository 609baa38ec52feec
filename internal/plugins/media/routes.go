package media

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/middleware"
	"github.com/keyxmakerx/minutes/internal/plugins/settings"
	"github.com/keyxmakerx/minutes/internal/ratelimit"
)

// RegisterRoutes sets up branding routes. The logo itself is public; the
// admin group carries authentication and guard enforces branding.manage.
func RegisterRoutes(e *echo.Echo, admin *echo.Group, h *Handler, limiter *ratelimit.Limiter, guard echo.MiddlewareFunc) {
	e.GET("/branding", h.CurrentLogo)
	e.GET("/branding/:name", h.ServeLogo)

	// The configured limit can change at runtime, so the body cap uses the
	// hard ceiling and the service enforces the current setting. A 10%
	// margin covers multipart encoding overhead.
	bodyLimit := bodyLimitMiddleware(settings.MaxUploadSizeCeiling + settings.MaxUploadSizeCeiling/10)
	uploadRateLimit := middleware.RateLimit(limiter, "branding_upload", 10, time.Minute)

	admin.POST("/branding/logo", h.UploadLogo, guard, uploadRateLimit, bodyLimit)
	admin.DELETE("/branding/logo", h.DeleteLogo, guard)
}

// bodyLimitMiddleware returns middleware that rejects request bodies exceeding
// the given size in bytes. Applied before the handler reads the body into memory.
func bodyLimitMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large; maximum is %d MB", maxBytes/(1024*1024)))
			}
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}
