package smtp

import "github.com/labstack/echo/v4"

// RegisterRoutes sets up SMTP admin routes on the given admin route group.
// The caller applies authentication; guard enforces settings.manage.
func RegisterRoutes(adminGroup *echo.Group, h *Handler, guard echo.MiddlewareFunc) {
	adminGroup.GET("/smtp", h.Settings, guard)
	adminGroup.PUT("/smtp", h.UpdateSettings, guard)
	adminGroup.POST("/smtp/test", h.TestConnection, guard)
}
