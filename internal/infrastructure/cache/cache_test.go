package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"safetyportal/internal/ports"
	"safetyportal/internal/testutil/dbtest"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func exerciseExpiry(t *testing.T, cache ports.Cache, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	if err := cache.Set(ctx, "img:a", "bytes-a", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "img:b", "bytes-b", 0); err != nil {
		t.Fatalf("Set(no ttl) error = %v", err)
	}

	value, found, err := cache.Get(ctx, "img:a")
	if err != nil || !found || value != "bytes-a" {
		t.Fatalf("Get() = %q, %v, %v", value, found, err)
	}

	clock.Advance(time.Minute)

	if _, found, err := cache.Get(ctx, "img:a"); err != nil || found {
		t.Fatalf("Get() after ttl found=%v err=%v, want miss", found, err)
	}
	if value, found, err := cache.Get(ctx, "img:b"); err != nil || !found || value != "bytes-b" {
		t.Fatalf("Get(no ttl) = %q, %v, %v", value, found, err)
	}

	if err := cache.Set(ctx, "img:a", "bytes-a2", time.Minute); err != nil {
		t.Fatalf("Set(again) error = %v", err)
	}
	if value, found, _ := cache.Get(ctx, "img:a"); !found || value != "bytes-a2" {
		t.Fatalf("Get() after reset = %q, %v", value, found)
	}

	if err := cache.Delete(ctx, "img:a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := cache.Get(ctx, "img:a"); found {
		t.Fatalf("Get() after delete found=true")
	}

	if err := cache.Set(ctx, "  ", "x", 0); err == nil {
		t.Fatalf("Set(blank key) error = nil")
	}
}

func TestMemoryCacheHonoursTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	exerciseExpiry(t, NewMemoryCacheWithClock(clock.Now), clock)
}

func TestDBCacheHonoursTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	cache := NewDBCache(dbtest.Open(t))
	cache.now = clock.Now
	exerciseExpiry(t, cache, clock)
}

func TestMemoryCacheCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := NewMemoryCache().Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}
}

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	value, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestRedisCachePrefixesKeysAndPassesTTL(t *testing.T) {
	rdb := &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
	cache := NewRedisCache(rdb, "safetyportal")
	ctx := context.Background()

	if err := cache.Set(ctx, "img:a", "v", 5*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if rdb.ttls["safetyportal:img:a"] != 5*time.Minute {
		t.Fatalf("ttl = %v", rdb.ttls["safetyportal:img:a"])
	}
	if err := cache.Set(ctx, "img:b", "v", -time.Second); err != nil {
		t.Fatalf("Set(negative) error = %v", err)
	}
	if rdb.ttls["safetyportal:img:b"] != 0 {
		t.Fatalf("negative ttl forwarded as %v", rdb.ttls["safetyportal:img:b"])
	}

	value, found, err := cache.Get(ctx, "img:a")
	if err != nil || !found || value != "v" {
		t.Fatalf("Get() = %q, %v, %v", value, found, err)
	}
	if _, found, err := cache.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) found=%v err=%v", found, err)
	}
	if err := cache.Delete(ctx, "img:a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := rdb.values["safetyportal:img:a"]; ok {
		t.Fatalf("Delete() left key behind")
	}

	rdb.err = errors.New("connection refused")
	if _, _, err := cache.Get(ctx, "img:b"); err == nil {
		t.Fatalf("Get() with failing redis error = nil")
	}
}
