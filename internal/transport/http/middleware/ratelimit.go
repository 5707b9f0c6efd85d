package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/shared"
)

type rateBucket struct {
	count int
	reset time.Time
}

// RateLimiter is a fixed window limiter keyed by client address. It guards
// expensive endpoints such as payroll runs.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]*rateBucket
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, now: time.Now, clients: map[string]*rateBucket{}}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.allow(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

func (rl *RateLimiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	key := shared.ClientIP(r)
	now := rl.now()

	rl.mu.Lock()
	for k, b := range rl.clients {
		if now.After(b.reset) {
			delete(rl.clients, k)
		}
	}
	bucket, ok := rl.clients[key]
	if !ok {
		bucket = &rateBucket{reset: now.Add(rl.window)}
		rl.clients[key] = bucket
	}
	bucket.count++
	remaining := rl.limit - bucket.count
	resetIn := int(bucket.reset.Sub(now).Seconds())
	over := bucket.count > rl.limit
	rl.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	if !over {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	zerolog.Ctx(r.Context()).Warn().
		Str("client", key).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("limit", rl.limit).
		Msg("rate limit exceeded")
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}
