package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// redisCommands is the subset of the go-redis client the cache issues.
type redisCommands interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// RedisCache keeps entries in Redis under a key prefix and lets Redis expire them.
type RedisCache struct {
	rdb    redisCommands
	prefix string
}

var _ ports.Cache = (*RedisCache)(nil)

func NewRedisCache(rdb redisCommands, prefix string) *RedisCache {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// DialRedis connects and pings, closing the client if the ping fails.
func DialRedis(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.Wrapf(err, "redis ping %s", addr)
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	value, err := c.rdb.Get(ctx, c.prefix+trimmedKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(err, "redis get")
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := c.rdb.Set(ctx, c.prefix+trimmedKey, value, ttl).Err(); err != nil {
		return errs.Wrap(err, "redis set")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.rdb.Del(ctx, c.prefix+trimmedKey).Err(); err != nil {
		return errs.Wrap(err, "redis del")
	}
	return nil
}
