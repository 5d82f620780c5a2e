package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sql-sandbox/pkg/res"
)

// RateLimiter keeps one token bucket per client address. Buckets idle for
// longer than ttl are dropped on the next sweep.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*visitor
	rate       rate.Limit
	burst      int
	ttl        time.Duration
	lastGC     time.Time
	now        func() time.Time
	retryAfter string
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*visitor),
		rate:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:      max(1, perMinute/4),
		ttl:        10 * time.Minute,
		now:        time.Now,
		retryAfter: strconv.Itoa(max(1, 60/perMinute)),
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastGC) > rl.ttl {
		for k, v := range rl.limiters {
			if now.Sub(v.seen) > rl.ttl {
				delete(rl.limiters, k)
			}
		}
		rl.lastGC = now
	}

	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = v
	}
	v.seen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", rl.retryAfter)
			res.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
