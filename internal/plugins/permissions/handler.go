package permissions

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// Handler exposes the caller's effective permissions so clients can hide
// actions they cannot perform.
type Handler struct {
	resolver *Resolver
}

// NewHandler creates a new permissions handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

type permissionsResponse struct {
	Role        string        `json:"role"`
	Permissions PermissionSet `json:"permissions"`
}

// MyPermissions returns the signed-in user's role and effective
// permissions (GET /api/v1/me/permissions).
func (h *Handler) MyPermissions(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return auth.ErrUnauthenticated
	}

	set, err := h.resolver.EffectivePermissions(c.Request().Context(), user.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, permissionsResponse{
		Role:        user.Role.String(),
		Permissions: set,
	})
}

// ListKnown returns every known permission name with each role's default
// set (GET /api/v1/admin/permissions).
func (h *Handler) ListKnown(c echo.Context) error {
	byRole := make(map[string]PermissionSet, len(roles.All))
	for _, role := range roles.All {
		byRole[role.String()] = DefaultPermissions(role)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"permissions": All(),
		"defaults":    byRole,
	})
}
