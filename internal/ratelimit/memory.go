package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/keyxmakerx/minutes/internal/metrics"
)

// DefaultSweepInterval is how often Run removes expired windows when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// window is one client's counter.
type window struct {
	count     int
	resetTime time.Time
}

// MemoryStore is the process-local Store. A single mutex serializes every
// read-modify-write so concurrent requests cannot lose increments; the
// critical sections never perform I/O.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, limit int, win time.Duration, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetTime) {
		w = &window{count: 1, resetTime: now.Add(win)}
		s.windows[key] = w
		return Result{Allowed: true, Remaining: limit - 1, ResetTime: w.resetTime}, nil
	}

	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetTime: w.resetTime}, nil
	}

	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, ResetTime: w.resetTime}, nil
}

// Sweep removes every window whose reset time has passed and returns how
// many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.After(w.resetTime) {
			delete(s.windows, key)
			removed++
		}
	}
	metrics.RecordSweep(removed, len(s.windows))
	return removed
}

// Len returns the number of live windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Run sweeps on every tick until ctx is cancelled. Start it in its own
// goroutine. A non-positive interval falls back to DefaultSweepInterval.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				slog.Debug("rate limit sweep",
					slog.Int("removed", n),
					slog.Int("live", s.Len()),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}
