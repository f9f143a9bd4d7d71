package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// FSStore keeps objects as files under root/<bucket>/<key> with a JSON
// sidecar holding the content type.
type FSStore struct {
	publicURLs
	root string
}

var _ ports.ObjectStorage = (*FSStore)(nil)

type fsMeta struct {
	ContentType string `json:"content_type,omitempty"`
}

func NewFSStore(root string, publicBaseURL string) (*FSStore, error) {
	if root == "" {
		root = "./objects"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create storage root %q", root)
	}
	return &FSStore{publicURLs: publicURLs{base: publicBaseURL}, root: root}, nil
}

func (s *FSStore) pathFor(bucket, key string) (string, string, error) {
	b, err := cleanBucket(bucket)
	if err != nil {
		return "", "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath := filepath.Join(s.root, b, filepath.FromSlash(k))
	return dataPath, dataPath + ".meta", nil
}

func (s *FSStore) Upload(ctx context.Context, bucket string, key string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	dataPath, metaPath, err := s.pathFor(bucket, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return "", errs.Wrap(err, "create object directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return "", errs.Wrap(err, "create temp object")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", errs.Wrap(err, "write object")
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Wrap(err, "close temp object")
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return "", errs.Wrap(err, "move object into place")
	}

	meta, err := json.Marshal(fsMeta{ContentType: contentType})
	if err != nil {
		return "", errs.Wrap(err, "encode object meta")
	}
	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		return "", errs.Wrap(err, "write object meta")
	}
	return key, nil
}

func (s *FSStore) Open(ctx context.Context, bucket string, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", errs.Wrap(err, "check context")
	}
	dataPath, metaPath, err := s.pathFor(bucket, key)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(dataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ports.ErrObjectNotFound
		}
		return nil, "", errs.Wrap(err, "open object")
	}

	var meta fsMeta
	if raw, err := os.ReadFile(metaPath); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return f, meta.ContentType, nil
}

func (s *FSStore) Delete(ctx context.Context, bucket string, key string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	dataPath, metaPath, err := s.pathFor(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.ErrObjectNotFound
		}
		return errs.Wrap(err, "delete object")
	}
	_ = os.Remove(metaPath)
	return nil
}
