package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// SettingsService handles business logic for the site's security settings.
// Every read goes to the repository; nothing is cached.
type SettingsService interface {
	// CurrentSettings reads and parses the settings. Missing or malformed
	// values fall back to safe defaults.
	CurrentSettings(ctx context.Context) (*Settings, error)

	// UpdateSettings validates and persists the non-nil fields of req and
	// returns the resulting settings plus the keys that were written.
	UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*Settings, []string, error)

	// SetBrandingLogo records the stored file name of the site logo.
	SetBrandingLogo(ctx context.Context, name string) error

	// SessionTTL returns the auto-logout interval, 0 when unset or when the
	// settings cannot be read.
	SessionTTL(ctx context.Context) time.Duration

	// AuditEnabled reports whether security events are recorded. It
	// returns true when the settings cannot be read.
	AuditEnabled(ctx context.Context) bool
}

// settingsService implements SettingsService.
type settingsService struct {
	repo          SettingsRepository
	isPermission  func(string) bool
	adminRequired []string
}

// NewSettingsService creates a new settings service. isPermission, if not
// nil, rejects role overrides naming unknown permissions. An admin override
// must keep every permission in adminRequired; dropping one would leave
// nobody able to reach the endpoint that restores it.
func NewSettingsService(repo SettingsRepository, isPermission func(string) bool, adminRequired ...string) SettingsService {
	return &settingsService{repo: repo, isPermission: isPermission, adminRequired: adminRequired}
}

// CurrentSettings implements SettingsService.
func (s *settingsService) CurrentSettings(ctx context.Context) (*Settings, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	return &Settings{
		RoleOverrides:      parseRoleOverrides(all[KeyRoleOverrides]),
		AuditEnabled:       parseBool(all[KeyAuditEnabled], true),
		AutoLogout:         time.Duration(parseInt64(all[KeyAutoLogoutMinutes], 0)) * time.Minute,
		MaxUploadSizeBytes: parseInt64(all[KeyMaxUploadSize], DefaultMaxUploadSize),
		BrandingLogo:       all[KeyBrandingLogo],
	}, nil
}

// UpdateSettings implements SettingsService.
func (s *settingsService) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*Settings, []string, error) {
	current, err := s.CurrentSettings(ctx)
	if err != nil {
		return nil, nil, err
	}

	values := make(map[string]string)

	if req.RoleOverrides != nil {
		overrides := maps.Clone(current.RoleOverrides)
		if overrides == nil {
			overrides = make(map[roles.Role][]string)
		}
		for name, perms := range req.RoleOverrides {
			role := roles.Parse(name)
			if !role.IsValid() {
				return nil, nil, apperror.NewValidation(fmt.Sprintf("unknown role %q", name))
			}
			if perms == nil {
				delete(overrides, role)
				continue
			}
			cleaned, err := s.cleanPermissions(*perms)
			if err != nil {
				return nil, nil, err
			}
			overrides[role] = cleaned
		}
		if admin, ok := overrides[roles.RoleAdmin]; ok {
			for _, p := range s.adminRequired {
				if !slices.Contains(admin, p) {
					return nil, nil, apperror.NewValidation(fmt.Sprintf("the admin role must keep %q", p))
				}
			}
		}
		encoded, err := encodeRoleOverrides(overrides)
		if err != nil {
			return nil, nil, apperror.NewInternal(err)
		}
		values[KeyRoleOverrides] = encoded
	}

	if req.AuditEnabled != nil {
		values[KeyAuditEnabled] = strconv.FormatBool(*req.AuditEnabled)
	}

	if req.AutoLogoutMinutes != nil {
		minutes := *req.AutoLogoutMinutes
		if minutes < 0 {
			return nil, nil, apperror.NewValidation("auto logout cannot be negative")
		}
		if time.Duration(minutes)*time.Minute > MaxAutoLogout {
			return nil, nil, apperror.NewValidation("auto logout cannot exceed 7 days")
		}
		values[KeyAutoLogoutMinutes] = strconv.Itoa(minutes)
	}

	if req.MaxUploadSizeBytes != nil {
		size := *req.MaxUploadSizeBytes
		if size <= 0 {
			return nil, nil, apperror.NewValidation("max upload size must be positive")
		}
		if size > MaxUploadSizeCeiling {
			return nil, nil, apperror.NewValidation("max upload size cannot exceed 50 MB")
		}
		values[KeyMaxUploadSize] = strconv.FormatInt(size, 10)
	}

	if len(values) == 0 {
		return current, nil, nil
	}

	if err := s.repo.SetMany(ctx, values); err != nil {
		return nil, nil, fmt.Errorf("persisting settings: %w", err)
	}

	updated, err := s.CurrentSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	return updated, slices.Sorted(maps.Keys(values)), nil
}

// SetBrandingLogo implements SettingsService.
func (s *settingsService) SetBrandingLogo(ctx context.Context, name string) error {
	return s.repo.Set(ctx, KeyBrandingLogo, name)
}

// SessionTTL implements SettingsService.
func (s *settingsService) SessionTTL(ctx context.Context) time.Duration {
	current, err := s.CurrentSettings(ctx)
	if err != nil {
		slog.Warn("reading auto logout setting failed, using default session lifetime",
			slog.Any("error", err),
		)
		return 0
	}
	return current.AutoLogout
}

// AuditEnabled implements SettingsService.
func (s *settingsService) AuditEnabled(ctx context.Context) bool {
	current, err := s.CurrentSettings(ctx)
	if err != nil {
		slog.Warn("reading audit setting failed, recording anyway",
			slog.Any("error", err),
		)
		return true
	}
	return current.AuditEnabled
}

// cleanPermissions trims, validates and de-duplicates a permission list.
// An empty list is allowed and grants nothing.
func (s *settingsService) cleanPermissions(perms []string) ([]string, error) {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, apperror.NewValidation("permission names cannot be empty")
		}
		if s.isPermission != nil && !s.isPermission(p) {
			return nil, apperror.NewValidation(fmt.Sprintf("unknown permission %q", p))
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out, nil
}

// --- Parsing helpers ---

// parseRoleOverrides decodes the stored JSON object of role name to
// permission list. Unknown roles are skipped; a malformed document yields
// no overrides so every role falls back to its defaults.
func parseRoleOverrides(raw string) map[roles.Role][]string {
	out := make(map[roles.Role][]string)
	if strings.TrimSpace(raw) == "" {
		return out
	}

	var decoded map[string][]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		slog.Warn("ignoring malformed role overrides", slog.Any("error", err))
		return out
	}
	for name, perms := range decoded {
		role := roles.Parse(name)
		if !role.IsValid() {
			slog.Warn("ignoring override for unknown role", slog.String("role", name))
			continue
		}
		if perms == nil {
			perms = []string{}
		}
		out[role] = perms
	}
	return out
}

func encodeRoleOverrides(overrides map[roles.Role][]string) (string, error) {
	byName := make(map[string][]string, len(overrides))
	for role, perms := range overrides {
		byName[role.String()] = perms
	}
	b, err := json.Marshal(byName)
	if err != nil {
		return "", fmt.Errorf("encoding role overrides: %w", err)
	}
	return string(b), nil
}

// parseInt64 parses a string to int64, returning the fallback on failure.
func parseInt64(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func parseBool(s string, fallback bool) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}
