package media

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/plugins/settings"
)

// Handler handles HTTP requests for branding operations.
type Handler struct {
	service BrandingService
}

// NewHandler creates a new media handler.
func NewHandler(service BrandingService) *Handler {
	return &Handler{service: service}
}

// UploadLogo handles a multipart logo upload
// (POST /api/v1/admin/branding/logo).
func (h *Handler) UploadLogo(c echo.Context) error {
	userID := auth.GetUserID(c)
	if userID == "" {
		return auth.ErrUnauthenticated
	}

	file, err := c.FormFile("file")
	if err != nil {
		return apperror.NewBadRequest("no file provided")
	}
	if file.Size > settings.MaxUploadSizeCeiling {
		return ErrFileTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return apperror.NewInternal(err)
	}
	defer src.Close()

	// Read one byte past the ceiling so an understated part size is caught.
	fileBytes, err := io.ReadAll(io.LimitReader(src, settings.MaxUploadSizeCeiling+1))
	if err != nil {
		return apperror.NewInternal(err)
	}

	logo, err := h.service.UploadLogo(c.Request().Context(), UploadInput{
		UploadedBy:   userID,
		OriginalName: file.Filename,
		MimeType:     file.Header.Get("Content-Type"),
		FileBytes:    fileBytes,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, UploadResponse{
		Name:     logo.Name,
		URL:      "/branding/" + logo.Name,
		MimeType: logo.MimeType,
		FileSize: logo.FileSize,
		Width:    logo.Width,
		Height:   logo.Height,
	})
}

// DeleteLogo clears the site logo (DELETE /api/v1/admin/branding/logo).
func (h *Handler) DeleteLogo(c echo.Context) error {
	if err := h.service.RemoveLogo(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CurrentLogo returns the URL of the current logo (GET /branding).
func (h *Handler) CurrentLogo(c echo.Context) error {
	name, err := h.service.CurrentLogo(c.Request().Context())
	if err != nil {
		return err
	}
	if name == "" {
		return c.JSON(http.StatusOK, map[string]any{"url": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"url": "/branding/" + name})
}

// ServeLogo serves a logo file (GET /branding/:name). Logo names embed a
// UUID and never change, so responses are cached indefinitely.
func (h *Handler) ServeLogo(c echo.Context) error {
	path, err := h.service.LogoPath(c.Param("name"))
	if err != nil {
		return err
	}

	header := c.Response().Header()
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	header.Set("Content-Type", extensionToMime[strings.ToLower(filepath.Ext(path))])
	header.Set("Content-Security-Policy", "default-src 'none'")
	return c.File(path)
}
