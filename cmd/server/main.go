// Package main is the entry point for the minutes server. It loads
// configuration, establishes database connections, wires together the
// plugins, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/minutes/internal/app"
	"github.com/keyxmakerx/minutes/internal/config"
	"github.com/keyxmakerx/minutes/internal/database"
	"github.com/keyxmakerx/minutes/internal/ratelimit"
	"github.com/keyxmakerx/minutes/internal/secrets"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrConfigurationMissing) {
			slog.Error("refusing to start without required secrets", slog.Any("error", err))
		} else {
			slog.Error("failed to load config", slog.Any("error", err))
		}
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting minutes",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
	)

	store, err := secrets.New(cfg.Auth)
	if err != nil {
		slog.Error("failed to load secrets", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Rate limit backend ---
	var rdb *redis.Client
	var limitStore ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("connected to Redis")
		limitStore = ratelimit.NewRedisStore(rdb, "minutes:ratelimit:")
	default:
		mem := ratelimit.NewMemoryStore()
		go mem.Run(ctx, cfg.RateLimit.SweepInterval)
		limitStore = mem
	}

	// --- Create Application ---
	application := app.New(cfg, db, rdb, store, ratelimit.New(limitStore))
	if err := application.RegisterRoutes(); err != nil {
		slog.Error("failed to wire application", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Graceful Shutdown ---
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")
		stop()

		// Give in-flight requests 10 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// setupLogging configures the global slog logger. Development uses text
// format for readability; everything else uses JSON.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
