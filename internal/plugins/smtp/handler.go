package smtp

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
)

// Handler handles HTTP requests for SMTP settings management.
// Admin-only -- all routes require the settings.manage permission.
type Handler struct {
	service SMTPService
}

// NewHandler creates a new SMTP handler.
func NewHandler(service SMTPService) *Handler {
	return &Handler{service: service}
}

// Settings returns the SMTP settings (GET /api/v1/admin/smtp).
func (h *Handler) Settings(c echo.Context) error {
	settings, err := h.service.GetSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings saves SMTP settings (PUT /api/v1/admin/smtp).
func (h *Handler) UpdateSettings(c echo.Context) error {
	var req UpdateSMTPRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	settings, err := h.service.UpdateSettings(c.Request().Context(), req)
	if err != nil {
		return err
	}

	slog.Info("smtp settings changed", slog.String("by", auth.GetUserID(c)))
	return c.JSON(http.StatusOK, settings)
}

// TestConnection tests SMTP connectivity (POST /api/v1/admin/smtp/test).
func (h *Handler) TestConnection(c echo.Context) error {
	if err := h.service.TestConnection(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "connection successful"})
}
