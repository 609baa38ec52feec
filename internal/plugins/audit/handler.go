package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler serves the security event listing.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// ListEvents returns one page of security events
// (GET /api/v1/admin/security-events?type=&page=).
func (h *Handler) ListEvents(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	result, err := h.service.ListEvents(c.Request().Context(), c.QueryParam("type"), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
