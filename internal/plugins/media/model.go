// Package media stores and serves the site's branding logo. Uploads are
// size-checked against the site settings, type-checked by magic bytes and
// decoded header, and downscaled when larger than the display size. Every
// file name taken from a request is resolved through pathguard before it
// touches the filesystem.
package media

import (
	"net/http"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
)

// BrandingFile describes a stored logo.
type BrandingFile struct {
	Name       string    `json:"name"` // File name inside the branding directory.
	MimeType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadInput holds the raw upload handed from the handler to the service.
type UploadInput struct {
	UploadedBy   string
	OriginalName string
	MimeType     string
	FileBytes    []byte
}

// UploadResponse is the JSON response returned after a successful upload.
type UploadResponse struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// --- Limits ---

const (
	// maxLogoDimension is the display size; larger logos are downscaled.
	maxLogoDimension = 512

	// maxSourceDimension rejects images whose header claims absurd sizes
	// before any pixel data is decoded.
	maxSourceDimension = 8192

	// brandingDir is the subdirectory of the media root holding logos.
	brandingDir = "branding"
)

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = &apperror.AppError{
	Code:    http.StatusRequestEntityTooLarge,
	Type:    "file_too_large",
	Message: "file is too large",
}

// --- MIME Type Validation ---

// AllowedMimeTypes defines which MIME types are accepted for upload. SVG
// is deliberately absent: it can carry script.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// MimeToExtension maps MIME types to file extensions.
var MimeToExtension = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// extensionToMime is the reverse of MimeToExtension, used when serving.
var extensionToMime = map[string]string{
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// formatToMime maps image.DecodeConfig format names to MIME types.
var formatToMime = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}
