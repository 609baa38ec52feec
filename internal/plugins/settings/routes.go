package settings

import "github.com/labstack/echo/v4"

// RegisterRoutes sets up settings routes on the given admin group. The
// caller applies authentication to g; guard enforces settings.manage.
func RegisterRoutes(g *echo.Group, h *Handler, guard echo.MiddlewareFunc) {
	g.GET("/settings", h.GetSettings, guard)
	g.PUT("/settings", h.UpdateSettings, guard)
}
