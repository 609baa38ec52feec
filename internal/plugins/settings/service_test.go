package settings

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// --- Mock Repository ---

// mockSettingsRepo is an in-memory SettingsRepository.
type mockSettingsRepo struct {
	values   map[string]string
	err      error
	getCalls int
}

func newMockRepo(values map[string]string) *mockSettingsRepo {
	if values == nil {
		values = map[string]string{}
	}
	return &mockSettingsRepo{values: values}
}

func (m *mockSettingsRepo) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", apperror.NewNotFound("setting not found")
	}
	return v, nil
}

func (m *mockSettingsRepo) Set(_ context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsRepo) SetMany(_ context.Context, values map[string]string) error {
	if m.err != nil {
		return m.err
	}
	maps.Copy(m.values, values)
	return nil
}

func (m *mockSettingsRepo) GetAll(context.Context) (map[string]string, error) {
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	return maps.Clone(m.values), nil
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d", expectedCode, appErr.Code)
	}
}

// --- Tests ---

func TestCurrentSettings_Defaults(t *testing.T) {
	s, err := NewSettingsService(newMockRepo(nil), nil).CurrentSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !s.AuditEnabled {
		t.Error("expected audit enabled by default")
	}
	if s.AutoLogout != 0 {
		t.Errorf("expected no auto logout, got %v", s.AutoLogout)
	}
	if s.MaxUploadSizeBytes != DefaultMaxUploadSize {
		t.Errorf("expected default upload size, got %d", s.MaxUploadSizeBytes)
	}
	if len(s.RoleOverrides) != 0 {
		t.Errorf("expected no overrides, got %v", s.RoleOverrides)
	}
}

func TestCurrentSettings_Parses(t *testing.T) {
	repo := newMockRepo(map[string]string{
		KeyRoleOverrides:     `{"moderator":["meetings.read"],"guest":["x"],"user":[]}`,
		KeyAuditEnabled:      "false",
		KeyAutoLogoutMinutes: "30",
		KeyMaxUploadSize:     "1048576",
		KeyBrandingLogo:      "logo.png",
	})
	s, err := NewSettingsService(repo, nil).CurrentSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got := s.RoleOverrides[roles.RoleModerator]; !slices.Equal(got, []string{"meetings.read"}) {
		t.Errorf("unexpected moderator override %v", got)
	}
	if got, ok := s.RoleOverrides[roles.RoleUser]; !ok || len(got) != 0 {
		t.Errorf("expected explicit empty user override, got %v (present=%v)", got, ok)
	}
	if len(s.RoleOverrides) != 2 {
		t.Errorf("expected unknown role to be skipped, got %v", s.RoleOverrides)
	}
	if s.AuditEnabled || s.AutoLogout != 30*time.Minute || s.MaxUploadSizeBytes != 1<<20 || s.BrandingLogo != "logo.png" {
		t.Errorf("unexpected settings %+v", s)
	}
}

func TestCurrentSettings_MalformedOverridesFallBack(t *testing.T) {
	repo := newMockRepo(map[string]string{
		KeyRoleOverrides: `{not json`,
		KeyMaxUploadSize: "-5",
	})
	s, err := NewSettingsService(repo, nil).CurrentSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.RoleOverrides) != 0 {
		t.Errorf("expected no overrides, got %v", s.RoleOverrides)
	}
	if s.MaxUploadSizeBytes != DefaultMaxUploadSize {
		t.Errorf("expected fallback upload size, got %d", s.MaxUploadSizeBytes)
	}
}

func TestCurrentSettings_AlwaysReReads(t *testing.T) {
	repo := newMockRepo(map[string]string{KeyAuditEnabled: "true"})
	svc := NewSettingsService(repo, nil)
	ctx := context.Background()

	if !svc.AuditEnabled(ctx) {
		t.Fatal("expected enabled")
	}
	repo.values[KeyAuditEnabled] = "false"
	if svc.AuditEnabled(ctx) {
		t.Error("expected the change to be visible on the next call")
	}
	if repo.getCalls != 2 {
		t.Errorf("expected 2 reads, got %d", repo.getCalls)
	}
}

func TestSessionTTLAndAuditEnabled_OnError(t *testing.T) {
	repo := newMockRepo(nil)
	repo.err = errors.New("db down")
	svc := NewSettingsService(repo, nil)

	if ttl := svc.SessionTTL(context.Background()); ttl != 0 {
		t.Errorf("expected 0 ttl on error, got %v", ttl)
	}
	if !svc.AuditEnabled(context.Background()) {
		t.Error("expected auditing to stay on when settings cannot be read")
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := newMockRepo(map[string]string{
		KeyRoleOverrides: `{"user":["meetings.read"]}`,
	})
	known := func(p string) bool { return p != "bogus.perm" }
	svc := NewSettingsService(repo, known)

	perms := []string{" minutes.read ", "meetings.read", "minutes.read"}
	audit := false
	minutes := 15
	got, changed, err := svc.UpdateSettings(context.Background(), &UpdateSettingsRequest{
		RoleOverrides: map[string]*[]string{
			"Moderator": &perms,
			"user":      nil,
		},
		AuditEnabled:      &audit,
		AutoLogoutMinutes: &minutes,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if want := []string{KeyRoleOverrides, KeyAuditEnabled, KeyAutoLogoutMinutes}; !sameElements(changed, want) {
		t.Errorf("changed = %v, want %v", changed, want)
	}
	if mod := got.RoleOverrides[roles.RoleModerator]; !slices.Equal(mod, []string{"meetings.read", "minutes.read"}) {
		t.Errorf("expected cleaned moderator override, got %v", mod)
	}
	if _, ok := got.RoleOverrides[roles.RoleUser]; ok {
		t.Error("expected user override to be removed")
	}
	if got.AuditEnabled || got.AutoLogout != 15*time.Minute {
		t.Errorf("unexpected settings %+v", got)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	svc := NewSettingsService(newMockRepo(nil), func(p string) bool { return p == "meetings.read" })
	ctx := context.Background()

	neg := -1
	tooLong := 8 * 24 * 60
	var zero int64
	huge := MaxUploadSizeCeiling + 1
	bogus := []string{"bogus.perm"}
	blank := []string{" "}

	tests := []struct {
		name string
		req  UpdateSettingsRequest
	}{
		{"unknown role", UpdateSettingsRequest{RoleOverrides: map[string]*[]string{"owner": &bogus}}},
		{"unknown permission", UpdateSettingsRequest{RoleOverrides: map[string]*[]string{"user": &bogus}}},
		{"blank permission", UpdateSettingsRequest{RoleOverrides: map[string]*[]string{"user": &blank}}},
		{"negative auto logout", UpdateSettingsRequest{AutoLogoutMinutes: &neg}},
		{"auto logout too long", UpdateSettingsRequest{AutoLogoutMinutes: &tooLong}},
		{"zero upload size", UpdateSettingsRequest{MaxUploadSizeBytes: &zero}},
		{"huge upload size", UpdateSettingsRequest{MaxUploadSizeBytes: &huge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.UpdateSettings(ctx, &tt.req)
			assertAppError(t, err, 422)
		})
	}
}

func TestUpdateSettings_AdminOverrideKeepsManagement(t *testing.T) {
	required := []string{"settings.manage", "users.manage"}
	ctx := context.Background()

	empty := []string{}
	noUsers := []string{"settings.manage", "audit.view"}
	for name, perms := range map[string]*[]string{"empty": &empty, "drops users.manage": &noUsers} {
		t.Run(name, func(t *testing.T) {
			repo := newMockRepo(nil)
			svc := NewSettingsService(repo, nil, required...)

			_, _, err := svc.UpdateSettings(ctx, &UpdateSettingsRequest{
				RoleOverrides: map[string]*[]string{"admin": perms},
			})
			assertAppError(t, err, 422)
			if len(repo.values) != 0 {
				t.Errorf("expected nothing written, got %v", repo.values)
			}
		})
	}

	repo := newMockRepo(nil)
	svc := NewSettingsService(repo, nil, required...)
	keeps := []string{"users.manage", "settings.manage"}
	got, _, err := svc.UpdateSettings(ctx, &UpdateSettingsRequest{
		RoleOverrides: map[string]*[]string{"admin": &keeps},
	})
	if err != nil {
		t.Fatalf("override keeping both permissions: %v", err)
	}
	if len(got.RoleOverrides[roles.RoleAdmin]) != 2 {
		t.Errorf("unexpected admin override %v", got.RoleOverrides[roles.RoleAdmin])
	}

	// Removing the admin override restores the defaults and is always allowed.
	if _, _, err := svc.UpdateSettings(ctx, &UpdateSettingsRequest{
		RoleOverrides: map[string]*[]string{"admin": nil},
	}); err != nil {
		t.Errorf("clearing admin override: %v", err)
	}
}

func TestUpdateSettings_NoChanges(t *testing.T) {
	repo := newMockRepo(nil)
	_, changed, err := NewSettingsService(repo, nil).UpdateSettings(context.Background(), &UpdateSettingsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 || len(repo.values) != 0 {
		t.Errorf("expected nothing written, got %v / %v", changed, repo.values)
	}
}

func TestView(t *testing.T) {
	s := &Settings{
		RoleOverrides: map[roles.Role][]string{roles.RoleAdmin: {"audit.view"}},
		AutoLogout:    90 * time.Minute,
	}
	v := s.View()
	if v.AutoLogoutMinutes != 90 || !slices.Equal(v.RoleOverrides["admin"], []string{"audit.view"}) {
		t.Errorf("unexpected view %+v", v)
	}
}

func sameElements(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
