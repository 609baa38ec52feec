// Package roles defines the ordered account roles shared by the auth and
// permissions plugins.
package roles

import "strings"

// Role is an account's position in the privilege hierarchy. Higher values
// carry strictly more privilege.
type Role int

const (
	// RoleNone is the rank of an unknown or missing role. It never passes a
	// role check.
	RoleNone Role = 0

	// RoleUser can read meetings and comment on minutes.
	RoleUser Role = 1

	// RoleModerator can additionally run meetings and write minutes.
	RoleModerator Role = 2

	// RoleAdmin can do everything, including user and settings management.
	RoleAdmin Role = 3
)

// All lists the assignable roles in ascending order.
var All = []Role{RoleUser, RoleModerator, RoleAdmin}

// String returns the role's stored name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Parse converts a stored role name to a Role. Unknown names map to
// RoleNone.
func Parse(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser
	case "moderator":
		return RoleModerator
	case "admin":
		return RoleAdmin
	default:
		return RoleNone
	}
}

// IsValid reports whether r is an assignable role.
func (r Role) IsValid() bool {
	return r >= RoleUser && r <= RoleAdmin
}

// Rank returns the numeric rank used for comparisons.
func (r Role) Rank() int {
	if !r.IsValid() {
		return 0
	}
	return int(r)
}

// AtLeast reports whether r meets the required minimum. RoleNone never
// passes, even against a RoleNone requirement.
func (r Role) AtLeast(min Role) bool {
	if !r.IsValid() {
		return false
	}
	return r.Rank() >= min.Rank()
}

// MarshalText stores the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a role name. Unknown names decode to RoleNone.
func (r *Role) UnmarshalText(b []byte) error {
	*r = Parse(string(b))
	return nil
}
