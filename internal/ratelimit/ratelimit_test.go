package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate float64, burst int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(rate, burst)
	l.now = clock.now
	return l, clock
}

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	limiter, _ := newTestLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("192.168.1.1") {
			t.Errorf("request %d within burst of 3 should be allowed", i+1)
		}
	}
	if limiter.Allow("192.168.1.1") {
		t.Error("request exceeding burst should be denied")
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(0.5, 1)

	limiter.Allow("a")
	if limiter.Allow("a") {
		t.Fatal("expected bucket to be empty")
	}
	clock.advance(2 * time.Second)
	if !limiter.Allow("a") {
		t.Error("expected a token after two seconds at 0.5/s")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)

	limiter.Allow("a")
	if !limiter.Allow("b") {
		t.Error("expected a separate bucket per key")
	}
}

func TestEvictRemovesIdleVisitors(t *testing.T) {
	limiter, clock := newTestLimiter(1, 1)
	limiter.Allow("a")
	clock.advance(time.Minute)
	limiter.Allow("b")

	if removed := limiter.evict(30 * time.Second); removed != 1 {
		t.Errorf("expected one eviction, got %d", removed)
	}
	if _, ok := limiter.visitors["b"]; !ok {
		t.Error("expected recent visitor to be kept")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Run(ctx, time.Millisecond, time.Minute)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	limiter, _ := newTestLimiter(0.01, 3)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pass", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "10" {
			t.Error("expected Retry-After header")
		}
	}
	want := []int{204, 204, 204, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}

func TestMiddlewareCustomKey(t *testing.T) {
	limiter, _ := newTestLimiter(0.01, 1)
	limiter.WithKey(func(r *http.Request) string { return r.URL.Path })
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, path := range []string{"/a", "/b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected %s allowed in its own bucket, got %d", path, rec.Code)
		}
	}
}
