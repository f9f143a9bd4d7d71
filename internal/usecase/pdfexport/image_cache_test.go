package pdfexport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"safetyportal/internal/infrastructure/cache"
	"safetyportal/internal/testutil/fakes"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(clock *manualClock) (*ImageCache, *fakes.Metrics) {
	metrics := fakes.NewMetrics()
	c := NewImageCache(cache.NewMemoryCacheWithClock(clock.Now), metrics)
	c.now = clock.Now
	return c, metrics
}

func TestImageCacheFreshForFiveMinutes(t *testing.T) {
	clock := newManualClock()
	c, metrics := newTestCache(clock)
	ctx := context.Background()

	var fetches int
	fetch := func(context.Context) (string, error) {
		fetches++
		return EncodeDataURI("image/png", []byte{byte(fetches)}), nil
	}

	first, err := c.GetOrFetch(ctx, "https://cdn.example.com/a.png", DefaultImageTTL, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}

	clock.Advance(4*time.Minute + 59*time.Second)
	again, err := c.GetOrFetch(ctx, "https://cdn.example.com/a.png", DefaultImageTTL, fetch)
	if err != nil || again != first || fetches != 1 {
		t.Fatalf("within ttl: value equal=%v fetches=%d err=%v", again == first, fetches, err)
	}

	clock.Advance(time.Second)
	refreshed, err := c.GetOrFetch(ctx, "https://cdn.example.com/a.png", DefaultImageTTL, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch() after ttl error = %v", err)
	}
	if fetches != 2 || refreshed == first {
		t.Fatalf("after ttl: fetches=%d refreshed=%v", fetches, refreshed != first)
	}
	if metrics.CacheHits != 1 || metrics.CacheMisses != 2 {
		t.Fatalf("hits=%d misses=%d", metrics.CacheHits, metrics.CacheMisses)
	}
}

func TestImageCacheDoesNotStoreFailures(t *testing.T) {
	c, _ := newTestCache(newManualClock())
	ctx := context.Background()

	boom := errors.New("cdn down")
	if _, err := c.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	got, err := c.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("GetOrFetch() after failure = %q, %v", got, err)
	}
}

func TestImageCacheCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache(newManualClock())
	ctx := context.Background()

	var fetches atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		fetches.Add(1)
		<-release
		return "data:image/png;base64,AA==", nil
	}

	const callers = 16
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			results[i], _ = c.GetOrFetch(ctx, "shared", time.Minute, fetch)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if n := fetches.Load(); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
	for i, r := range results {
		if r != "data:image/png;base64,AA==" {
			t.Fatalf("caller %d got %q", i, r)
		}
	}
}
