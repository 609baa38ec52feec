// Package permissions resolves what a role may do. Each role has a
// compiled-in default permission set; the site settings may replace a
// role's set wholesale. Overrides are read from settings on every call.
package permissions

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// Permission names follow the "resource.verb" pattern.
const (
	MeetingsRead    = "meetings.read"
	MeetingsCreate  = "meetings.create"
	MeetingsEdit    = "meetings.edit"
	MeetingsDelete  = "meetings.delete"
	MinutesRead     = "minutes.read"
	MinutesComment  = "minutes.comment"
	MinutesWrite    = "minutes.write"
	MinutesExport   = "minutes.export"
	MinutesApprove  = "minutes.approve"
	AttendeesManage = "attendees.manage"
	UsersManage     = "users.manage"
	SettingsManage  = "settings.manage"
	AuditView       = "audit.view"
	BrandingManage  = "branding.manage"
)

// ErrInsufficientPermission is returned when the caller's role or
// permission set does not cover the requested action.
var ErrInsufficientPermission = &apperror.AppError{
	Code:    http.StatusForbidden,
	Type:    "insufficient_permission",
	Message: "you do not have permission to do that",
}

var userDefaults = []string{
	MeetingsRead,
	MinutesRead,
	MinutesComment,
}

var moderatorDefaults = append(slices.Clone(userDefaults),
	MeetingsCreate,
	MeetingsEdit,
	MinutesWrite,
	MinutesExport,
	AttendeesManage,
)

var adminDefaults = append(slices.Clone(moderatorDefaults),
	MeetingsDelete,
	MinutesApprove,
	UsersManage,
	SettingsManage,
	AuditView,
	BrandingManage,
)

// defaults maps each role to its compiled-in permission set.
var defaults = map[roles.Role]PermissionSet{
	roles.RoleUser:      NewPermissionSet(userDefaults...),
	roles.RoleModerator: NewPermissionSet(moderatorDefaults...),
	roles.RoleAdmin:     NewPermissionSet(adminDefaults...),
}

// All returns every known permission name in sorted order.
func All() []string {
	return defaults[roles.RoleAdmin].List()
}

// AdminRequired returns the permissions an admin role override may not
// drop. Without them no account could undo the override.
func AdminRequired() []string {
	return []string{SettingsManage, UsersManage}
}

// IsKnown reports whether p is a known permission name.
func IsKnown(p string) bool {
	return defaults[roles.RoleAdmin].Has(p)
}

// DefaultPermissions returns a copy of role's compiled-in set. Unknown
// roles get an empty set.
func DefaultPermissions(role roles.Role) PermissionSet {
	return defaults[role].Clone()
}

// PermissionSet is an unordered set of permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from names.
func NewPermissionSet(names ...string) PermissionSet {
	s := make(PermissionSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set. A nil set has nothing.
func (s PermissionSet) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// List returns the names in sorted order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}
