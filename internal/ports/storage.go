package ports

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("stored object not found")

// ObjectStorage stores files in named buckets. Keys are relative to a bucket;
// PublicURL renders the address clients use to read the object back.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket string, key string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, bucket string, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, bucket string, key string) error
	PublicURL(bucket string, key string) string
}

// ImageFetcher retrieves the bytes behind an absolute image address.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Buckets names the bucket for each kind of image owner.
type Buckets struct {
	Observation string
	ActionPlan  string
}
