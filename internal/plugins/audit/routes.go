package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the audit endpoints on g. The caller applies
// authentication and the audit.view permission to g.
func RegisterRoutes(g *echo.Group, h *Handler, guard echo.MiddlewareFunc) {
	g.GET("/security-events", h.ListEvents, guard)
}
