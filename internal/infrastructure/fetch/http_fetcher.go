// Package fetch downloads remote images referenced by absolute URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

const defaultMaxBytes = 20 << 20

type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

var _ ports.ImageFetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPFetcher{client: client, maxBytes: defaultMaxBytes}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errs.Wrap(err, "build image request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", errs.Wrapf(err, "fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", errs.Wrapf(err, "read %s", url)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("fetch %s: image exceeds %d bytes", url, f.maxBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}
