// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Buckets idle longer than the
// configured TTL are evicted, and at most size keys are tracked.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// New allows perMinute requests per key on average with bursts of up to
// burst. A non-positive perMinute disables limiting.
func New(perMinute, burst, size int, ttl time.Duration) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if size < 1 {
		size = 10000
	}
	l := &Limiter{burst: burst}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.buckets = expirable.NewLRU[string, *rate.Limiter](size, nil, ttl)
	}
	return l
}

// Allow reports whether one more request from key fits its bucket.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.buckets == nil {
		return true
	}
	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, b)
	}
	l.mu.Unlock()
	return b.Allow()
}

// Middleware rejects requests over the per-client limit with a RateLimited
// error written through write. Clients are keyed by IP.
func (l *Limiter) Middleware(write func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "60")
				write(w, r, apperr.New(apperr.RateLimited))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the address recorded by the audit middleware, which
// honors proxy headers, and falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if meta, ok := auditlog.MetaFrom(r.Context()); ok && meta.IP != "" {
		return meta.IP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
