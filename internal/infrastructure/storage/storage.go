// Package storage holds the object storage backends behind ports.ObjectStorage.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"safetyportal/internal/domain/report"
)

var errEmptyKey = errors.New("empty object key")

// cleanKey rejects keys that would escape their bucket.
func cleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errEmptyKey
	}
	if strings.HasPrefix(trimmed, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid key traversal %q", key)
		}
	}
	return path.Clean(trimmed), nil
}

func cleanBucket(bucket string) (string, error) {
	trimmed := strings.TrimSpace(bucket)
	if trimmed == "" || strings.ContainsAny(trimmed, "/\\") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return trimmed, nil
}

// publicURLs renders object addresses under a common public origin.
type publicURLs struct {
	base string
}

func (p publicURLs) PublicURL(bucket string, key string) string {
	return report.PublicObjectURL(p.base, bucket, key)
}
