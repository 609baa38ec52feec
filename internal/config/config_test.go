package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// setRequired sets both secrets so Load can succeed.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", "a-signing-key-that-is-long-enough-for-prod")
	t.Setenv("ENCRYPTION_KEY", "an-encryption-passphrase")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.SessionTTL != 8*time.Hour {
		t.Errorf("expected 8h session TTL, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.RateLimit.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.SweepInterval != 5*time.Minute {
		t.Errorf("expected 5m sweep, got %s", cfg.RateLimit.SweepInterval)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development by default")
	}
}

func TestLoad_MissingSecretKey(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	t.Setenv("ENCRYPTION_KEY", "x")

	_, err := Load()
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "SECRET_KEY") {
		t.Errorf("expected error to name SECRET_KEY, got %q", err.Error())
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	t.Setenv("SECRET_KEY", "x")
	t.Setenv("ENCRYPTION_KEY", "")

	_, err := Load()
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "ENCRYPTION_KEY") {
		t.Errorf("expected error to name ENCRYPTION_KEY, got %q", err.Error())
	}
}

func TestLoad_ShortSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SECRET_KEY", "short")
	t.Setenv("ENCRYPTION_KEY", "x")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for short production secret")
	}
}

func TestLoad_InvalidRateLimitBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_BACKEND", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoad_NonPositiveSweepInterval(t *testing.T) {
	for _, v := range []string{"0s", "-1m"} {
		t.Run(v, func(t *testing.T) {
			setRequired(t)
			t.Setenv("RATE_LIMIT_SWEEP_INTERVAL", v)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for sweep interval %s", v)
			}
		})
	}
}

func TestSecureCookies(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		insecure bool
		want     bool
	}{
		{"development", "development", false, false},
		{"production", "production", false, true},
		{"production plaintext opt-in", "production", true, false},
		{"prod alias", "PROD", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Env: tt.env, Auth: AuthConfig{AllowInsecureHTTP: tt.insecure}}
			if got := cfg.SecureCookies(); got != tt.want {
				t.Errorf("SecureCookies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8 , ,192.168.0.0/16")
	got := getEnvList("TRUSTED_PROXIES", nil)
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.168.0.0/16" {
		t.Errorf("unexpected list: %v", got)
	}
}

func TestDSN_Override(t *testing.T) {
	d := DatabaseConfig{dsnOverride: "u:p@tcp(db:3306)/x"}
	if d.DSN() != "u:p@tcp(db:3306)/x" {
		t.Errorf("expected override DSN, got %q", d.DSN())
	}
}

func TestDSN_AppendsPort(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss", Name: "minutes"}
	if !strings.Contains(d.DSN(), "tcp(db:3306)") {
		t.Errorf("expected default port in DSN, got %q", d.DSN())
	}
}
