// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development, except for
// the two secrets: the process refuses to start without them.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrConfigurationMissing is returned by Load when a required variable is
// unset. The wrapping error names the variable.
var ErrConfigurationMissing = errors.New("required configuration missing")

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links in emails.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig

	// RateLimit selects and tunes the request limiter backend.
	RateLimit RateLimitConfig

	// Upload holds file upload settings.
	Upload UploadConfig

	// TrustedProxies lists the CIDRs whose forwarding headers are trusted
	// for request logging.
	TrustedProxies []string

	// CORSOrigins lists the origins allowed to call the JSON API with
	// credentials. Empty means same-origin only.
	CORSOrigins []string
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "minutes").
	User string

	// Password is the MariaDB password (default: "minutes").
	Password string

	// Name is the database name (default: "minutes").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration

	// MigrationsPath is the directory holding the *.up.sql files.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SecretKey signs session tokens (SECRET_KEY, required).
	SecretKey string

	// EncryptionKey is the passphrase the at-rest cipher key is derived
	// from (ENCRYPTION_KEY, required).
	EncryptionKey string

	// SessionTTL is the default session lifetime when the site settings
	// do not override it.
	SessionTTL time.Duration

	// AllowInsecureHTTP disables the Secure cookie flag in production for
	// deployments that terminate plaintext HTTP on purpose.
	AllowInsecureHTTP bool
}

// RateLimitConfig selects the limiter backend.
type RateLimitConfig struct {
	// Backend is "memory" (process-local, default) or "redis" (shared).
	Backend string

	// SweepInterval is how often expired in-memory windows are removed.
	SweepInterval time.Duration
}

// UploadConfig holds file upload settings. The size cap itself is a
// site setting.
type UploadConfig struct {
	// MediaPath is the root directory for uploaded branding files.
	MediaPath string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error wrapping ErrConfigurationMissing if a required secret is
// unset; the caller must refuse to start.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "minutes"),
			Password:        getEnv("DB_PASSWORD", "minutes"),
			Name:            getEnv("DB_NAME", "minutes"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SecretKey:         getEnv("SECRET_KEY", ""),
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			SessionTTL:        getEnvDuration("SESSION_TTL", 8*time.Hour),
			AllowInsecureHTTP: getEnvBool("ALLOW_INSECURE_HTTP", false),
		},

		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			SweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		},

		Upload: UploadConfig{
			MediaPath: getEnv("MEDIA_PATH", "./media"),
		},

		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{
			"127.0.0.0/8",
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
			"fd00::/8",
		}),

		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}

	// Both secrets are required in every environment. Running with an
	// undefined key would make every issued token and ciphertext forgeable
	// or unreadable after a restart.
	if cfg.Auth.SecretKey == "" {
		return nil, fmt.Errorf("%w: SECRET_KEY is not set", ErrConfigurationMissing)
	}
	if cfg.Auth.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: ENCRYPTION_KEY is not set", ErrConfigurationMissing)
	}
	if cfg.IsProduction() && len(cfg.Auth.SecretKey) < 32 {
		return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
	}

	switch cfg.RateLimit.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be \"memory\" or \"redis\", got %q", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.SweepInterval <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_SWEEP_INTERVAL must be positive, got %s", cfg.RateLimit.SweepInterval)
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and its common short form.
// Case-insensitive so "Production" and "PROD" also count.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SecureCookies reports whether session cookies get the Secure flag:
// production deployments only, unless plaintext transport was opted into.
func (c *Config) SecureCookies() bool {
	return c.IsProduction() && !c.Auth.AllowInsecureHTTP
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var ("true", "1", ...) or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "8h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
