package storage

import (
	"context"
	"errors"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// GCSStore keeps objects in Google Cloud Storage buckets.
type GCSStore struct {
	publicURLs
	client *gcs.Client
}

var _ ports.ObjectStorage = (*GCSStore)(nil)

type GCSOptions struct {
	Endpoint        string
	CredentialsFile string
	PublicBaseURL   string
}

func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	clientOpts := []option.ClientOption{option.WithScopes(gcs.ScopeReadWrite)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	} else if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "create gcs client")
	}
	return &GCSStore{publicURLs: publicURLs{base: opts.PublicBaseURL}, client: client}, nil
}

func (s *GCSStore) Upload(ctx context.Context, bucket string, key string, r io.Reader, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(k).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errs.Wrapf(err, "write gcs object %s/%s", bucket, k)
	}
	if err := w.Close(); err != nil {
		return "", errs.Wrapf(err, "close gcs writer %s/%s", bucket, k)
	}
	return key, nil
}

func (s *GCSStore) Open(ctx context.Context, bucket string, key string) (io.ReadCloser, string, error) {
	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, "", ports.ErrObjectNotFound
		}
		return nil, "", errs.Wrapf(err, "open gcs object %s/%s", bucket, key)
	}
	return reader, reader.Attrs.ContentType, nil
}

func (s *GCSStore) Delete(ctx context.Context, bucket string, key string) error {
	if err := s.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ports.ErrObjectNotFound
		}
		return errs.Wrapf(err, "delete gcs object %s/%s", bucket, key)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
