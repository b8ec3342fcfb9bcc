package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxDocumentBytes = 16 << 20

// Source fetches raw JSON documents from the file host. Implementations
// must bypass intermediate caches and report a missing document with an
// error wrapping ErrNotFound.
type Source interface {
	Fetch(ctx context.Context, address string) ([]byte, error)
}

// HTTPSource reads documents from a static web host.
type HTTPSource struct {
	baseURL *url.URL
	client  *http.Client
	now     func() time.Time
}

func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{baseURL: u, client: client, now: time.Now}, nil
}

// resolve joins relative addresses onto the base URL and appends the
// cache-busting parameter.
func (s *HTTPSource) resolve(address string) (string, error) {
	ref, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", address, err)
	}
	u := s.baseURL.ResolveReference(ref)
	q := u.Query()
	q.Set("cb", strconv.FormatInt(s.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *HTTPSource) Fetch(ctx context.Context, address string) ([]byte, error) {
	target, err := s.resolve(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrNetwork, address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrNetwork, address, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNetwork, address, err)
	}
	return body, nil
}

// ObjectReader is the subset of the object store used to read documents.
type ObjectReader interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// StorageSource reads documents straight from the bucket that backs the
// file host, for deployments where the feeds are not web-published.
type StorageSource struct {
	objects  ObjectReader
	prefix   string
	notFound error
}

// NewStorageSource creates a source rooted at prefix. notFound is the
// error the object store wraps for missing keys.
func NewStorageSource(objects ObjectReader, prefix string, notFound error) *StorageSource {
	return &StorageSource{objects: objects, prefix: strings.Trim(prefix, "/"), notFound: notFound}
}

func (s *StorageSource) Fetch(ctx context.Context, address string) ([]byte, error) {
	key := strings.TrimPrefix(address, "/")
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	body, err := s.objects.GetObject(ctx, key)
	if err != nil {
		if s.notFound != nil && errors.Is(err, s.notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrNetwork, key, err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNetwork, key, err)
	}
	return data, nil
}
