package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/puntazo/puntazo/internal/httputil"
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a per-key token bucket. Keys default to the client IP.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    float64
	now      func() time.Time
	key      func(*http.Request) string
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		visitors: make(map[string]*visitor),
		rate:     requestsPerSecond,
		burst:    float64(burst),
		now:      time.Now,
		key:      httputil.ClientIP,
	}
}

// WithKey scopes buckets by a custom request key, for example client and
// gated side together.
func (l *Limiter) WithKey(key func(*http.Request) string) *Limiter {
	l.key = key
	return l
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, exists := l.visitors[key]
	if !exists {
		l.visitors[key] = &visitor{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	elapsed := now.Sub(v.lastSeen).Seconds()
	v.lastSeen = now
	v.tokens = min(v.tokens+elapsed*l.rate, l.burst)

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// Run evicts idle visitors every interval until ctx ends.
func (l *Limiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(idle)
		}
	}
}

func (l *Limiter) evict(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.key(r)) {
			w.Header().Set("Retry-After", "10")
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
