// Package ratelimit implements per-client fixed-window request counters.
//
// The counting algorithm lives behind the Store interface so the default
// process-local MemoryStore can be swapped for the shared RedisStore without
// touching call sites. With MemoryStore, every service instance keeps its
// own independent counters.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// Store performs one atomic fixed-window hit for key at time now.
//
// Semantics every implementation must follow: if no window exists for key
// or now is after its reset time, a new window starts with count 1 and
// reset time now+window. Otherwise a full window (count >= limit) is
// reported as not allowed without being modified; any other window has its
// count incremented.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Limiter checks requests against a Store using its own clock.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New creates a Limiter over store.
func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check counts one request for clientKey against limit per window.
func (l *Limiter) Check(ctx context.Context, clientKey string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 {
		return Result{}, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return Result{}, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	return l.store.Hit(ctx, clientKey, limit, window, l.now())
}
