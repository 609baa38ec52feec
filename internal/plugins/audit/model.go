// Package audit records site-wide security events: sign-ins, password
// resets, verification, and administrative account and settings changes.
// Recording is switched on and off by the site's audit setting, which is
// re-read for every event.
package audit

import "time"

// Security event types follow the "resource.verb" pattern.
const (
	EventLoginSuccess           = "login.success"
	EventLoginFailed            = "login.failed"
	EventLogout                 = "logout"
	EventPasswordResetRequested = "password.reset_requested"
	EventPasswordResetCompleted = "password.reset_completed"
	EventEmailVerified          = "email.verified"
	EventUserRoleChanged        = "user.role_changed"
	EventUserDisabled           = "user.disabled"
	EventUserEnabled            = "user.enabled"
	EventSettingsUpdated        = "settings.updated"
)

// SecurityEvent is one recorded security-relevant action.
type SecurityEvent struct {
	ID        int64          `json:"id"`
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"` // Admin who performed the action.
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventPage is one page of the event listing.
type EventPage struct {
	Events  []SecurityEvent `json:"events"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}
