package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's IP, preferring X-Forwarded-For when the
// service runs behind a proxy, falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count int
	until time.Time
}

// RateLimiter is an in-memory fixed-window limiter keyed by whatever the
// caller chooses (client IP for login, user ID elsewhere). Counts reset
// when the key's window elapses.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*window)}
}

// check counts one request against the key and reports whether it fits,
// along with how long until the window resets when it does not.
func (rl *RateLimiter) check(key string, limit int, span time.Duration) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.entries[key]
	if !ok || now.After(w.until) {
		rl.entries[key] = &window{count: 1, until: now.Add(span)}
		return true, 0
	}

	w.count++
	if w.count > limit {
		return false, time.Until(w.until)
	}
	return true, 0
}

// Allow reports whether the key has capacity left in its current window.
func (rl *RateLimiter) Allow(key string, limit int, span time.Duration) bool {
	ok, _ := rl.check(key, limit, span)
	return ok
}

// Cleanup drops keys whose windows have elapsed. Run periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, w := range rl.entries {
		if now.After(w.until) {
			delete(rl.entries, key)
		}
	}
}

// RateLimit rejects requests over the limit with 429 and a Retry-After
// hint. The key function decides the limiting scope.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, span time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryIn := limiter.check(keyFunc(r), limit, span)
			if !ok {
				seconds := int(retryIn.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"too many requests, retry in %ds"}`, seconds)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
