package permissions

import (
	"context"
	"fmt"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/metrics"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/plugins/settings"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// SettingsProvider supplies the current site settings. Implemented by
// settings.SettingsService.
type SettingsProvider interface {
	CurrentSettings(ctx context.Context) (*settings.Settings, error)
}

// Resolver answers role and permission checks for authenticated users.
type Resolver struct {
	settings SettingsProvider
}

// NewResolver creates a Resolver reading overrides from provider.
func NewResolver(provider SettingsProvider) *Resolver {
	return &Resolver{settings: provider}
}

// RoleRank returns the position of role in user < moderator < admin, or 0
// for an unknown role.
func (r *Resolver) RoleRank(role roles.Role) int {
	return role.Rank()
}

// RequireRole succeeds iff user's role ranks at least min.
func (r *Resolver) RequireRole(user *auth.User, min roles.Role) error {
	if user == nil {
		return auth.ErrUnauthenticated
	}
	if !user.Role.AtLeast(min) {
		metrics.RecordPermissionDenial("role:" + min.String())
		return ErrInsufficientPermission
	}
	return nil
}

// RequireAdmin is RequireRole(user, RoleAdmin).
func (r *Resolver) RequireAdmin(user *auth.User) error {
	return r.RequireRole(user, roles.RoleAdmin)
}

// RequireModerator is RequireRole(user, RoleModerator).
func (r *Resolver) RequireModerator(user *auth.User) error {
	return r.RequireRole(user, roles.RoleModerator)
}

// EffectivePermissions returns the override for role if the settings
// define one, otherwise the compiled-in default. Settings are read on
// every call.
func (r *Resolver) EffectivePermissions(ctx context.Context, role roles.Role) (PermissionSet, error) {
	if !role.IsValid() {
		return PermissionSet{}, nil
	}

	current, err := r.settings.CurrentSettings(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading role overrides: %w", err))
	}
	if override, ok := current.RoleOverrides[role]; ok {
		return NewPermissionSet(override...), nil
	}
	return DefaultPermissions(role), nil
}

// HasPermission reports whether user's role currently grants perm.
func (r *Resolver) HasPermission(ctx context.Context, user *auth.User, perm string) (bool, error) {
	if user == nil {
		return false, nil
	}
	set, err := r.EffectivePermissions(ctx, user.Role)
	if err != nil {
		return false, err
	}
	return set.Has(perm), nil
}

// RequirePermission is HasPermission returning ErrInsufficientPermission
// on denial.
func (r *Resolver) RequirePermission(ctx context.Context, user *auth.User, perm string) error {
	if user == nil {
		return auth.ErrUnauthenticated
	}
	ok, err := r.HasPermission(ctx, user, perm)
	if err != nil {
		return err
	}
	if !ok {
		metrics.RecordPermissionDenial(perm)
		return ErrInsufficientPermission
	}
	return nil
}
