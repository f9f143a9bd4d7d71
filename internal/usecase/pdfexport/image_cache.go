package pdfexport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// DefaultImageTTL is how long a fetched image is reused.
const DefaultImageTTL = 5 * time.Minute

const cacheKeyPrefix = "pdf-image:"

type cachedImage struct {
	DataURI   string    `json:"data_uri"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ImageCache keeps fetched images as data URIs. An entry is served until ttl
// has passed since it was fetched. Concurrent misses for one key share a
// single fetch.
type ImageCache struct {
	cache   ports.Cache
	metrics ports.Metrics
	group   singleflight.Group
	now     func() time.Time
}

func NewImageCache(cache ports.Cache, metrics ports.Metrics) *ImageCache {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &ImageCache{cache: cache, metrics: metrics, now: time.Now}
}

// GetOrFetch returns the cached data URI for key, or calls fetch and stores
// its result.
func (c *ImageCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (string, error)) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if ttl <= 0 {
		ttl = DefaultImageTTL
	}

	if uri, ok := c.lookup(ctx, key, ttl); ok {
		c.metrics.ImageCacheLookup(true)
		return uri, nil
	}
	c.metrics.ImageCacheLookup(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have stored it while we waited.
		if uri, ok := c.lookup(ctx, key, ttl); ok {
			return uri, nil
		}
		uri, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		c.store(ctx, key, ttl, uri)
		return uri, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *ImageCache) lookup(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	raw, found, err := c.cache.Get(ctx, cacheKeyPrefix+key)
	if err != nil {
		logging.Warn(ctx, "image cache read failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		return "", false
	}
	if !found {
		return "", false
	}
	var entry cachedImage
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return "", false
	}
	if c.now().Sub(entry.FetchedAt) >= ttl {
		return "", false
	}
	return entry.DataURI, true
}

func (c *ImageCache) store(ctx context.Context, key string, ttl time.Duration, uri string) {
	raw, err := json.Marshal(cachedImage{DataURI: uri, FetchedAt: c.now()})
	if err == nil {
		err = c.cache.Set(ctx, cacheKeyPrefix+key, string(raw), ttl)
	}
	if err != nil {
		logging.Warn(ctx, "image cache write failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}
