package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// Register decoders for image formats.
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/pathguard"
	"github.com/keyxmakerx/minutes/internal/plugins/settings"
)

// SettingsStore reads the upload limit and records the current logo.
// Implemented by settings.SettingsService.
type SettingsStore interface {
	CurrentSettings(ctx context.Context) (*settings.Settings, error)
	SetBrandingLogo(ctx context.Context, name string) error
}

// BrandingService handles business logic for the site logo.
type BrandingService interface {
	// UploadLogo validates and stores a new logo, making it current.
	UploadLogo(ctx context.Context, input UploadInput) (*BrandingFile, error)

	// RemoveLogo clears the current logo.
	RemoveLogo(ctx context.Context) error

	// CurrentLogo returns the current logo's file name, or "".
	CurrentLogo(ctx context.Context) (string, error)

	// LogoPath resolves a requested logo name to a file on disk. Names
	// that escape the branding directory yield pathguard.ErrPathEscape.
	LogoPath(name string) (string, error)
}

// brandingService implements BrandingService.
type brandingService struct {
	settings SettingsStore
	dir      string // Absolute branding directory.
	now      func() time.Time
}

// NewBrandingService creates a new branding service storing files under
// mediaPath/branding.
func NewBrandingService(store SettingsStore, mediaPath string) (BrandingService, error) {
	dir, err := pathguard.Resolve(mediaPath, brandingDir)
	if err != nil {
		return nil, fmt.Errorf("resolving branding directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating branding directory: %w", err)
	}
	return &brandingService{settings: store, dir: dir, now: time.Now}, nil
}

// UploadLogo implements BrandingService.
func (s *brandingService) UploadLogo(ctx context.Context, input UploadInput) (*BrandingFile, error) {
	current, err := s.settings.CurrentSettings(ctx)
	if err != nil {
		return nil, err
	}

	size := int64(len(input.FileBytes))
	if size == 0 {
		return nil, apperror.NewBadRequest("no file provided")
	}
	if size > current.MaxUploadSizeBytes {
		return nil, ErrFileTooLarge.WithInternal(fmt.Errorf("%d bytes exceeds limit of %d", size, current.MaxUploadSizeBytes))
	}

	if !AllowedMimeTypes[input.MimeType] {
		return nil, apperror.NewBadRequest("unsupported file type: " + input.MimeType)
	}
	if !validateMagicBytes(input.FileBytes, input.MimeType) {
		return nil, apperror.NewBadRequest("file content does not match declared type")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(input.FileBytes))
	if err != nil || formatToMime[format] != input.MimeType {
		return nil, apperror.NewBadRequest("file is not a valid image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxSourceDimension || cfg.Height > maxSourceDimension {
		return nil, apperror.NewBadRequest(fmt.Sprintf("image dimensions must be at most %dx%d", maxSourceDimension, maxSourceDimension))
	}

	data, mimeType, width, height := input.FileBytes, input.MimeType, cfg.Width, cfg.Height
	if width > maxLogoDimension || height > maxLogoDimension {
		data, mimeType, width, height, err = downscale(input.FileBytes, input.MimeType)
		if err != nil {
			return nil, apperror.NewBadRequest("image could not be processed")
		}
	}

	name := "logo-" + uuid.NewString() + MimeToExtension[mimeType]
	path, err := pathguard.Resolve(s.dir, name)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("writing logo: %w", err))
	}

	if err := s.settings.SetBrandingLogo(ctx, name); err != nil {
		os.Remove(path)
		return nil, err
	}
	s.removeFile(current.BrandingLogo)

	slog.Info("branding logo uploaded",
		slog.String("name", name),
		slog.String("by", input.UploadedBy),
		slog.Int("width", width),
		slog.Int("height", height),
	)

	return &BrandingFile{
		Name:       name,
		MimeType:   mimeType,
		FileSize:   int64(len(data)),
		Width:      width,
		Height:     height,
		UploadedBy: input.UploadedBy,
		CreatedAt:  s.now().UTC(),
	}, nil
}

// RemoveLogo implements BrandingService.
func (s *brandingService) RemoveLogo(ctx context.Context) error {
	current, err := s.settings.CurrentSettings(ctx)
	if err != nil {
		return err
	}
	if current.BrandingLogo == "" {
		return nil
	}
	if err := s.settings.SetBrandingLogo(ctx, ""); err != nil {
		return err
	}
	s.removeFile(current.BrandingLogo)
	return nil
}

// CurrentLogo implements BrandingService.
func (s *brandingService) CurrentLogo(ctx context.Context) (string, error) {
	current, err := s.settings.CurrentSettings(ctx)
	if err != nil {
		return "", err
	}
	return current.BrandingLogo, nil
}

// LogoPath implements BrandingService.
func (s *brandingService) LogoPath(name string) (string, error) {
	path, err := pathguard.Resolve(s.dir, name)
	if err != nil {
		return "", err
	}
	// Logos live directly in the branding directory.
	if filepath.Dir(path) != s.dir {
		return "", apperror.NewNotFound("logo not found")
	}
	if _, ok := extensionToMime[strings.ToLower(filepath.Ext(path))]; !ok {
		return "", apperror.NewNotFound("logo not found")
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return "", apperror.NewNotFound("logo not found")
	}
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("stat logo: %w", err))
	}
	return path, nil
}

// removeFile deletes a previous logo, logging rather than failing.
func (s *brandingService) removeFile(name string) {
	if name == "" {
		return
	}
	path, err := pathguard.Resolve(s.dir, name)
	if err != nil {
		slog.Warn("refusing to remove logo outside branding directory", slog.String("name", name))
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("removing old logo failed",
			slog.String("name", name),
			slog.Any("error", err),
		)
	}
}

// downscale resizes an image so its longer side is maxLogoDimension,
// using Catmull-Rom interpolation. JPEG stays JPEG; everything else is
// re-encoded as PNG since there is no WebP encoder.
func downscale(data []byte, mimeType string) ([]byte, string, int, int, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decoding image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	newW, newH := maxLogoDimension, maxLogoDimension
	if w > h {
		newH = max(1, h*maxLogoDimension/w)
	} else {
		newW = max(1, w*maxLogoDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	outMime := "image/png"
	if mimeType == "image/jpeg" {
		outMime = mimeType
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("encoding logo: %w", err)
	}
	return buf.Bytes(), outMime, newW, newH, nil
}

// validateMagicBytes checks that the file content's magic bytes match the
// declared MIME type. Prevents uploading non-image files with a spoofed
// Content-Type header.
func validateMagicBytes(data []byte, declaredMIME string) bool {
	switch declaredMIME {
	case "image/jpeg":
		return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	case "image/png":
		return len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})
	case "image/webp":
		return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
	default:
		return false
	}
}

