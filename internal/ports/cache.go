package ports

import (
	"context"
	"time"
)

// Cache defines a key-value capability for usecases. Adapters must stop
// returning a value once its ttl has elapsed; ttl <= 0 means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
