package web

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter keyed by caller. Buckets refill to
// capacity once per window; idle buckets are dropped by a background sweep.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	capacity int
	window   time.Duration
	done     chan struct{}
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing capacity requests per window
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*tokenBucket),
		capacity: capacity,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow consumes one token for the key and reports whether the request may
// proceed, along with the remaining budget.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.lastRefill) >= rl.window {
		b = &tokenBucket{tokens: rl.capacity, lastRefill: now}
		rl.buckets[key] = b
	}

	if b.tokens <= 0 {
		return false, 0
	}
	b.tokens--
	return true, b.tokens
}

// Close stops the background sweep
func (rl *RateLimiter) Close() {
	close(rl.done)
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastRefill) >= 2*rl.window {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// clientKey identifies the caller: the authenticated actor when present,
// the remote address otherwise.
func clientKey(r *http.Request) string {
	if actor := ActorFrom(r.Context()); actor != "anonymous" {
		return actor
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the per-caller budget with 429
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining := limiter.Allow(clientKey(r))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprint(int(limiter.window.Seconds())))
				RenderJSON(w, http.StatusTooManyRequests, errorResponse{
					Error:   "rate_limited",
					Message: "request budget exhausted, retry later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
