package admin

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts user administration on the admin group. The caller
// has already applied authentication; guard enforces users.manage.
func RegisterRoutes(admin *echo.Group, h *Handler, guard echo.MiddlewareFunc) {
	users := admin.Group("/users", guard)
	users.GET("", h.Users)
	users.PUT("/:id/role", h.ChangeRole)
	users.PUT("/:id/disable", h.Disable)
	users.PUT("/:id/enable", h.Enable)
}
