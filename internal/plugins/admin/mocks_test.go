package admin

import (
	"context"
	"sync"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/plugins/audit"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// mockUserRepo implements auth.UserRepository over an in-memory map. Only
// the admin operations do anything.
type mockUserRepo struct {
	users map[string]*auth.User

	listUsersFn         func(ctx context.Context, offset, limit int) ([]auth.User, int, error)
	countActiveAdminsFn func(ctx context.Context) (int, error)

	updateRoleCalls   int
	updateActiveCalls int
}

func newMockUserRepo(users ...*auth.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*auth.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(context.Context, *auth.User) error { return nil }

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NewNotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByEmail(context.Context, string) (*auth.User, error) {
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(context.Context, string) (bool, error) { return false, nil }
func (m *mockUserRepo) UpdateLastLogin(context.Context, string) error     { return nil }

func (m *mockUserRepo) SetPasswordResetToken(context.Context, string, string, time.Time) error {
	return nil
}

func (m *mockUserRepo) FindByPasswordResetHash(context.Context, string, time.Time) (*auth.User, error) {
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) CompletePasswordReset(context.Context, string, string, string, time.Time) (bool, error) {
	return false, nil
}

func (m *mockUserRepo) SetEmailVerificationToken(context.Context, string, string, time.Time) error {
	return nil
}

func (m *mockUserRepo) FindByEmailVerificationHash(context.Context, string, time.Time) (*auth.User, error) {
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) MarkEmailVerified(context.Context, string, string) (bool, error) {
	return false, nil
}

func (m *mockUserRepo) ListUsers(ctx context.Context, offset, limit int) ([]auth.User, int, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, offset, limit)
	}
	var out []auth.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

// UpdateRole and UpdateIsActive apply the same last-admin guard as the SQL
// implementation, against the map rather than countActiveAdminsFn.
func (m *mockUserRepo) UpdateRole(_ context.Context, id string, role roles.Role) error {
	m.updateRoleCalls++
	u, ok := m.users[id]
	if !ok {
		return apperror.NewNotFound("user not found")
	}
	if role != roles.RoleAdmin && m.isLastAdmin(u) {
		return auth.ErrLastAdmin
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) UpdateIsActive(_ context.Context, id string, active bool) error {
	m.updateActiveCalls++
	u, ok := m.users[id]
	if !ok {
		return apperror.NewNotFound("user not found")
	}
	if !active && m.isLastAdmin(u) {
		return auth.ErrLastAdmin
	}
	u.IsActive = active
	return nil
}

func (m *mockUserRepo) isLastAdmin(u *auth.User) bool {
	if u.Role != roles.RoleAdmin || !u.IsActive {
		return false
	}
	n := 0
	for _, other := range m.users {
		if other.Role == roles.RoleAdmin && other.IsActive {
			n++
		}
	}
	return n <= 1
}

func (m *mockUserRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	if m.countActiveAdminsFn != nil {
		return m.countActiveAdminsFn(ctx)
	}
	n := 0
	for _, u := range m.users {
		if u.Role == roles.RoleAdmin && u.IsActive {
			n++
		}
	}
	return n, nil
}

// mockAudit collects recorded events.
type mockAudit struct {
	mu     sync.Mutex
	events []*audit.SecurityEvent
}

func (m *mockAudit) Record(_ context.Context, ev *audit.SecurityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockAudit) ListEvents(context.Context, string, int) (*audit.EventPage, error) {
	return &audit.EventPage{}, nil
}

func newUser(id string, role roles.Role, active bool) *auth.User {
	return &auth.User{ID: id, Email: id + "@example.com", Username: id, Role: role, IsActive: active}
}
