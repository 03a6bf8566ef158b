package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowSpendsBurstPerClient(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 3})
	defer rl.Stop()
	now := time.Date(2025, 4, 5, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("another client has its own bucket")
	}
	if got := rl.RetryAfter("10.0.0.1"); got != 1 {
		t.Errorf("RetryAfter = %d, want 1", got)
	}

	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("a token should refill after a second")
	}
	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestCleanupDropsIdleClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 10, IdleTimeout: time.Minute})
	defer rl.Stop()
	now := time.Date(2025, 4, 5, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 1 {
		t.Fatalf("ActiveClients = %d, want 1", rl.ActiveClients())
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	defer rl.Stop()
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/types", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", first.Code)
	}
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/types", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}
