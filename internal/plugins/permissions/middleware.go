package permissions

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// RequireRoleMiddleware rejects requests whose user ranks below min. It
// runs after auth.RequireAuth.
func (r *Resolver) RequireRoleMiddleware(min roles.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := r.RequireRole(auth.GetUser(c), min); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireAdminMiddleware allows only admins.
func (r *Resolver) RequireAdminMiddleware() echo.MiddlewareFunc {
	return r.RequireRoleMiddleware(roles.RoleAdmin)
}

// RequireModeratorMiddleware allows moderators and admins.
func (r *Resolver) RequireModeratorMiddleware() echo.MiddlewareFunc {
	return r.RequireRoleMiddleware(roles.RoleModerator)
}

// RequirePermissionMiddleware rejects requests whose user's effective
// permissions lack perm.
func (r *Resolver) RequirePermissionMiddleware(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := r.RequirePermission(c.Request().Context(), auth.GetUser(c), perm); err != nil {
				return err
			}
			return next(c)
		}
	}
}
