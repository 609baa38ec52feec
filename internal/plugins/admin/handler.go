package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/plugins/audit"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// Handler handles user administration requests.
type Handler struct {
	service UserAdminService
	audit   audit.AuditService
}

// NewHandler creates a new admin handler.
func NewHandler(service UserAdminService, auditSvc audit.AuditService) *Handler {
	return &Handler{service: service, audit: auditSvc}
}

// Users returns one page of accounts (GET /api/v1/admin/users?page=&per_page=).
func (h *Handler) Users(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	result, err := h.service.ListUsers(c.Request().Context(), page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ChangeRole sets a user's role (PUT /api/v1/admin/users/:id/role).
func (h *Handler) ChangeRole(c echo.Context) error {
	var req ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	actor := auth.GetUser(c)
	if actor == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	user, previous, err := h.service.ChangeRole(ctx, actor, c.Param("id"), roles.Parse(req.Role))
	if err != nil {
		return err
	}

	if previous != user.Role {
		ev := audit.NewEvent(c, audit.EventUserRoleChanged)
		ev.UserID = user.ID
		ev.ActorID = actor.ID
		ev.Details = map[string]any{"from": previous.String(), "to": user.Role.String()}
		h.audit.Record(ctx, ev)
	}

	return c.JSON(http.StatusOK, user)
}

// Disable blocks a user from signing in (PUT /api/v1/admin/users/:id/disable).
func (h *Handler) Disable(c echo.Context) error {
	return h.setActive(c, false, audit.EventUserDisabled)
}

// Enable lifts a previous disable (PUT /api/v1/admin/users/:id/enable).
func (h *Handler) Enable(c echo.Context) error {
	return h.setActive(c, true, audit.EventUserEnabled)
}

func (h *Handler) setActive(c echo.Context, active bool, eventType string) error {
	ctx := c.Request().Context()
	actor := auth.GetUser(c)
	if actor == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	user, err := h.service.SetActive(ctx, actor, c.Param("id"), active)
	if err != nil {
		return err
	}

	ev := audit.NewEvent(c, eventType)
	ev.UserID = user.ID
	ev.ActorID = actor.ID
	h.audit.Record(ctx, ev)

	return c.JSON(http.StatusOK, user)
}
