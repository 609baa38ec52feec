package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/locale"
	"github.com/keyxmakerx/minutes/internal/metrics"
	"github.com/keyxmakerx/minutes/internal/ratelimit"
)

// RateLimit returns middleware that allows at most limit requests per
// client key within window. The endpoint name labels the metrics and
// namespaces the key, so each endpoint counts its own window.
//
// Clients are keyed by ratelimit.ClientKey, so requests without an
// X-Forwarded-For header share a single bucket. If the store fails the
// request is let through and a warning is logged.
func RateLimit(limiter *ratelimit.Limiter, endpoint string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := endpoint + ":" + ratelimit.ClientKey(req)

			res, err := limiter.Check(req.Context(), key, limit, window)
			if err != nil {
				slog.Warn("rate limit check failed, allowing request",
					slog.String("endpoint", endpoint),
					slog.Any("error", err),
				)
				metrics.RecordRateLimit(endpoint, "error")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if !res.Allowed {
				metrics.RecordRateLimit(endpoint, "limited")
				retryAfter := int(time.Until(res.ResetTime).Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "rate_limited",
					"message": locale.Message(RequestLocale(c), locale.RateLimited),
				})
			}

			metrics.RecordRateLimit(endpoint, "allowed")
			return next(c)
		}
	}
}
