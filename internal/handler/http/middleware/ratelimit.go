// Package middleware holds reusable HTTP middleware that is not specific to
// a single route group.
package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a sliding-window request limiter keyed by an arbitrary
// string, typically the client ID. It protects the intake endpoint from a
// single tenant flooding the API; the delivery-side provider throttle is a
// separate, Redis-backed limiter shared across workers.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter allows at most limit requests per key per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		window:    window,
		requests:  make(map[string][]time.Time),
		lastSweep: time.Now(),
	}
}

// Allow reports whether key has a request budget left, recording the request
// when it does.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepLocked(now, cutoff)

	kept := rl.requests[key][:0]
	for _, ts := range rl.requests[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= rl.limit {
		rl.requests[key] = kept
		return false
	}
	rl.requests[key] = append(kept, now)
	return true
}

// sweepLocked drops idle keys so the map does not grow with tenant churn.
// Runs at most once per window.
func (rl *RateLimiter) sweepLocked(now time.Time, cutoff time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, stamps := range rl.requests {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.requests, key)
		}
	}
}

// Middleware enforces the limit using keyFunc to identify the caller. A
// request with no key (keyFunc returns "") is not limited; the auth
// middleware has already rejected anonymous traffic by then.
func (rl *RateLimiter) Middleware(keyFunc func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFunc(r)
		if key != "" && !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", rl.window.String())
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
