package permissions

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the permission endpoints. Both groups already
// carry auth.RequireAuth.
func RegisterRoutes(me *echo.Group, admin *echo.Group, h *Handler, r *Resolver) {
	me.GET("/permissions", h.MyPermissions)
	admin.GET("/permissions", h.ListKnown, r.RequirePermissionMiddleware(SettingsManage))
}
