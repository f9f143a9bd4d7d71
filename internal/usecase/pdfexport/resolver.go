package pdfexport

import (
	"context"
	"io"
	"strings"
	"time"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

const maxObjectBytes = 20 << 20

// Resolver turns stored image references into embeddable data URIs.
type Resolver struct {
	storage ports.ObjectStorage
	fetcher ports.ImageFetcher
	cache   *ImageCache
	ttl     time.Duration
}

func NewResolver(storage ports.ObjectStorage, fetcher ports.ImageFetcher, cache *ImageCache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultImageTTL
	}
	return &Resolver{storage: storage, fetcher: fetcher, cache: cache, ttl: ttl}
}

// Resolve returns the address of ref: a data URI or absolute URL as given, a
// storage key as the bucket's public object URL.
func (r *Resolver) Resolve(ref, bucket string) (string, report.ImageKind) {
	ref = strings.TrimSpace(ref)
	kind := report.ClassifyImageRef(ref)
	if kind == report.ImageKindStorageKey {
		return r.storage.PublicURL(bucket, ref), kind
	}
	return ref, kind
}

// DataURI resolves ref and returns its bytes as a data URI the PDF writer can
// embed. Remote and stored images go through the cache.
func (r *Resolver) DataURI(ctx context.Context, ref, bucket string) (string, error) {
	address, kind := r.Resolve(ref, bucket)
	switch kind {
	case report.ImageKindNone:
		return "", errs.Wrap(ports.ErrObjectNotFound, "empty image reference")
	case report.ImageKindDataURI:
		mime, data, err := DecodeDataURI(address)
		if err != nil {
			return "", err
		}
		return embeddableURI(mime, data)
	}

	return r.cache.GetOrFetch(ctx, address, r.ttl, func(ctx context.Context) (string, error) {
		mime, data, err := r.fetch(ctx, kind, address, bucket, ref)
		if err != nil {
			return "", err
		}
		return embeddableURI(mime, data)
	})
}

func (r *Resolver) fetch(ctx context.Context, kind report.ImageKind, address, bucket, key string) (string, []byte, error) {
	if kind == report.ImageKindURL {
		data, mime, err := r.fetcher.Fetch(ctx, address)
		return mime, data, err
	}

	body, mime, err := r.storage.Open(ctx, bucket, strings.TrimSpace(key))
	if err != nil {
		return "", nil, errs.Wrapf(err, "open %s/%s", bucket, key)
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(io.LimitReader(body, maxObjectBytes))
	if err != nil {
		return "", nil, errs.Wrapf(err, "read %s/%s", bucket, key)
	}
	return mime, data, nil
}

func embeddableURI(mime string, data []byte) (string, error) {
	mime, data, err := normalizeImage(mime, data)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(mime, data), nil
}
