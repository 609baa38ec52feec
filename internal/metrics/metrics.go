// Package metrics defines Prometheus metrics for the security layer.
//
// Metric naming follows Prometheus conventions:
//   - minutes_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuthFailuresTotal counts rejected authentications by reason
	// (unauthenticated, invalid_token, token_expired, user_not_found,
	// bad_credentials).
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minutes_auth_failures_total",
			Help: "Total authentication failures by reason.",
		},
		[]string{"reason"},
	)

	// PermissionDenialsTotal counts authorization failures by check name.
	PermissionDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minutes_permission_denials_total",
			Help: "Total authorization denials by check.",
		},
		[]string{"check"},
	)

	// RateLimitDecisionsTotal counts limiter outcomes per endpoint
	// (allowed, limited, error).
	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minutes_ratelimit_decisions_total",
			Help: "Total rate limiter decisions by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// RateLimitSweptTotal counts expired windows removed by the sweep.
	RateLimitSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minutes_ratelimit_swept_total",
			Help: "Total expired rate limit windows removed by the background sweep.",
		},
	)

	// RateLimitWindows tracks the number of live in-memory windows.
	RateLimitWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "minutes_ratelimit_windows",
			Help: "Current number of in-memory rate limit windows.",
		},
	)
)

// Registry is the registry served on /metrics. Kept separate from the
// global default so tests and multiple app instances don't collide.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		AuthFailuresTotal,
		PermissionDenialsTotal,
		RateLimitDecisionsTotal,
		RateLimitSweptTotal,
		RateLimitWindows,
	)
}

// RecordAuthFailure increments the auth failure counter.
func RecordAuthFailure(reason string) {
	AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordPermissionDenial increments the denial counter.
func RecordPermissionDenial(check string) {
	PermissionDenialsTotal.WithLabelValues(check).Inc()
}

// RecordRateLimit increments the decision counter for an endpoint.
func RecordRateLimit(endpoint, outcome string) {
	RateLimitDecisionsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordSweep adds removed windows to the sweep counter and updates the
// live window gauge.
func RecordSweep(removed, remaining int) {
	RateLimitSweptTotal.Add(float64(removed))
	RateLimitWindows.Set(float64(remaining))
}
