package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("doc", "id-1")
	c.Set("other", "id-2")

	now = now.Add(30 * time.Second)
	if _, ok := c.Get("doc"); !ok {
		t.Fatal("entry expired too early")
	}
	now = now.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after cleanup", c.Size())
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 0 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "loaded", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.GetOrLoad(ctx, "k", load); err != nil || v != "loaded" {
				t.Errorf("GetOrLoad = %q, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("load called %d times", n)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad(ctx, "bad", func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("failed load was cached")
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager()
	c := NewLRUCache[int](10, -time.Second)
	c.Set("x", 1)
	m.Register("docs", c)
	if got := m.Sweep(); got["docs"] != 1 {
		t.Errorf("Sweep() = %v", got)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
