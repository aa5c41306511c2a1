package storage

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"go-scan-sorter/internal/repository"
	"go-scan-sorter/pkg/validation"
)

// HTTPSource downloads a list of image URLs.
type HTTPSource struct {
	client    *RetryClient
	validator *validation.URLValidator
	names     []string
	urls      map[string]string
}

// HTTPSourceOption configures an HTTPSource
type HTTPSourceOption func(*HTTPSource)

// WithURLValidator replaces the default validator, which accepts any
// http(s) host.
func WithURLValidator(v *validation.URLValidator) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.validator = v
	}
}

// NewHTTPSource builds a source from a URL list. Non-image URLs are ignored
// and duplicate file names get a numeric suffix.
func NewHTTPSource(client *RetryClient, rawURLs []string, opts ...HTTPSourceOption) (*HTTPSource, error) {
	s := &HTTPSource{client: client, validator: validation.NewURLValidator(), urls: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		u, err := s.validator.ValidateImageURL(raw)
		if err != nil {
			return nil, fmt.Errorf("image url %q: %w", raw, err)
		}
		raw = u.String()
		name := path.Base(u.Path)
		if !repository.IsImageFile(name) {
			continue
		}
		name = s.uniqueName(name)
		s.names = append(s.names, name)
		s.urls[name] = raw
	}
	return s, nil
}

// NewHTTPSourceFromLocation accepts either a file holding one URL per line
// or a comma separated list.
func NewHTTPSourceFromLocation(client *RetryClient, location string, opts ...HTTPSourceOption) (*HTTPSource, error) {
	if f, err := os.Open(location); err == nil {
		defer f.Close()
		var lines []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read url list: %w", err)
		}
		return NewHTTPSource(client, lines, opts...)
	}
	return NewHTTPSource(client, strings.Split(location, ","), opts...)
}

func (s *HTTPSource) uniqueName(name string) string {
	if _, taken := s.urls[name]; !taken {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, taken := s.urls[candidate]; !taken {
			return candidate
		}
	}
}

func (s *HTTPSource) Name() string {
	return "http"
}

func (s *HTTPSource) List(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.names...), nil
}

func (s *HTTPSource) Copy(ctx context.Context, name, dstDir string) error {
	target, ok := s.urls[name]
	if !ok {
		return fmt.Errorf("unknown file %q", name)
	}
	resp, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "ScanSorter/1.0")
		req.Header.Set("Accept", "image/*")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	return writeFile(dstDir, name, resp.Body)
}
