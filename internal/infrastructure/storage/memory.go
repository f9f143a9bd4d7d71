package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

type memoryObject struct {
	body        []byte
	contentType string
}

// MemoryStore keeps objects in process memory. Used by tests and the demo profile.
type MemoryStore struct {
	publicURLs

	mu      sync.RWMutex
	objects map[string]memoryObject
	// FailKeys makes Upload fail for the listed "<bucket>/<key>" values.
	FailKeys map[string]error
}

var _ ports.ObjectStorage = (*MemoryStore)(nil)

func NewMemoryStore(publicBaseURL string) *MemoryStore {
	return &MemoryStore{
		publicURLs: publicURLs{base: publicBaseURL},
		objects:    make(map[string]memoryObject),
	}
}

func objectID(bucket, key string) string { return bucket + "/" + key }

func (s *MemoryStore) Upload(ctx context.Context, bucket string, key string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	b, err := cleanBucket(bucket)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if failure, ok := s.FailKeys[objectID(b, k)]; ok {
		return "", failure
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", errs.Wrap(err, "read upload body")
	}
	s.objects[objectID(b, k)] = memoryObject{body: body, contentType: contentType}
	return key, nil
}

func (s *MemoryStore) Open(ctx context.Context, bucket string, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", errs.Wrap(err, "check context")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectID(bucket, key)]
	if !ok {
		return nil, "", ports.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.body)), obj.contentType, nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket string, key string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := objectID(bucket, key)
	if _, ok := s.objects[id]; !ok {
		return ports.ErrObjectNotFound
	}
	delete(s.objects, id)
	return nil
}

// Keys lists the stored "<bucket>/<key>" ids in order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for id := range s.objects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
