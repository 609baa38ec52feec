// Package settings manages site-wide security configuration stored in the
// site_settings key-value table: role permission overrides, the audit
// switch, the auto-logout interval, and the branding upload limit. Values
// are re-read from the database on every call, so an admin's change takes
// effect on the very next request.
package settings

import (
	"time"

	"github.com/keyxmakerx/minutes/internal/roles"
)

// --- Database Models ---

// SiteSetting represents a single row in the site_settings key-value table.
// Settings are stored as string values and parsed into typed structs by the service layer.
type SiteSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Setting Key Constants ---

// Setting keys used in the site_settings table.
const (
	KeyRoleOverrides     = "security.role_overrides"
	KeyAuditEnabled      = "security.audit_enabled"
	KeyAutoLogoutMinutes = "security.auto_logout_minutes"
	KeyMaxUploadSize     = "storage.max_upload_size"
	KeyBrandingLogo      = "branding.logo"
)

// Defaults used when a key is missing or unparseable.
const (
	DefaultMaxUploadSize int64 = 2 << 20 // 2 MB
	MaxAutoLogout              = 7 * 24 * time.Hour
	MaxUploadSizeCeiling int64 = 50 << 20
)

// --- Service DTOs ---

// Settings is the parsed, typed view of the security settings.
type Settings struct {
	// RoleOverrides replaces a role's default permission set. A role with
	// no entry uses the compiled-in defaults.
	RoleOverrides      map[roles.Role][]string
	AuditEnabled       bool
	AutoLogout         time.Duration // 0 means the default session lifetime.
	MaxUploadSizeBytes int64
	BrandingLogo       string // Stored file name of the current logo, or "".
}

// SettingsView is the JSON shape of Settings served to admins.
type SettingsView struct {
	RoleOverrides      map[string][]string `json:"role_overrides"`
	AuditEnabled       bool                `json:"audit_enabled"`
	AutoLogoutMinutes  int                 `json:"auto_logout_minutes"`
	MaxUploadSizeBytes int64               `json:"max_upload_size_bytes"`
	BrandingLogo       string              `json:"branding_logo,omitempty"`
}

// View converts s into its JSON shape.
func (s *Settings) View() SettingsView {
	overrides := make(map[string][]string, len(s.RoleOverrides))
	for role, perms := range s.RoleOverrides {
		overrides[role.String()] = perms
	}
	return SettingsView{
		RoleOverrides:      overrides,
		AuditEnabled:       s.AuditEnabled,
		AutoLogoutMinutes:  int(s.AutoLogout / time.Minute),
		MaxUploadSizeBytes: s.MaxUploadSizeBytes,
		BrandingLogo:       s.BrandingLogo,
	}
}

// UpdateSettingsRequest is the body of PUT /api/v1/admin/settings. Nil
// fields are left unchanged. A role mapped to null in role_overrides has
// its override removed.
type UpdateSettingsRequest struct {
	RoleOverrides      map[string]*[]string `json:"role_overrides"`
	AuditEnabled       *bool                `json:"audit_enabled"`
	AutoLogoutMinutes  *int                 `json:"auto_logout_minutes"`
	MaxUploadSizeBytes *int64               `json:"max_upload_size_bytes"`
}
