package settings

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/plugins/audit"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
)

// Handler handles HTTP requests for security settings management.
// All routes require the settings.manage permission.
type Handler struct {
	service SettingsService
	audit   audit.AuditService
}

// NewHandler creates a new settings handler.
func NewHandler(service SettingsService, auditSvc audit.AuditService) *Handler {
	return &Handler{service: service, audit: auditSvc}
}

// GetSettings returns the current settings (GET /api/v1/admin/settings).
func (h *Handler) GetSettings(c echo.Context) error {
	current, err := h.service.CurrentSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, current.View())
}

// UpdateSettings applies a partial update (PUT /api/v1/admin/settings).
func (h *Handler) UpdateSettings(c echo.Context) error {
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	updated, changed, err := h.service.UpdateSettings(ctx, &req)
	if err != nil {
		return err
	}

	if len(changed) > 0 {
		actorID := auth.GetUserID(c)
		slog.Info("security settings updated",
			slog.String("by", actorID),
			slog.Any("keys", changed),
		)

		ev := audit.NewEvent(c, audit.EventSettingsUpdated)
		ev.ActorID = actorID
		ev.Details = map[string]any{"keys": changed}
		h.audit.Record(ctx, ev)
	}

	return c.JSON(http.StatusOK, updated.View())
}
