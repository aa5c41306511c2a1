package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAttempts = 3

// StatusError is a reply other than 200 OK.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return fmt.Sprintf("client error: status code %d", e.StatusCode)
	}
	if e.StatusCode >= 500 {
		return fmt.Sprintf("server error: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// Retryable reports whether another attempt may succeed. Only 5xx is retried.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// RequestBuilder creates a fresh request per attempt so bodies can be replayed.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// RetryClient retries transient failures: network errors and 5xx replies.
type RetryClient struct {
	client   *http.Client
	attempts int
	backoff  func(attempt int) time.Duration
}

// RetryOption configures a RetryClient
type RetryOption func(*RetryClient)

// WithBackoff sets the wait before retry number attempt (1-based).
func WithBackoff(fn func(attempt int) time.Duration) RetryOption {
	return func(c *RetryClient) {
		c.backoff = fn
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(client *http.Client) RetryOption {
	return func(c *RetryClient) {
		c.client = client
	}
}

// NewRetryClient creates a client with a pooled transport and linear backoff.
func NewRetryClient(timeout time.Duration, opts ...RetryOption) *RetryClient {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	c := &RetryClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		attempts: defaultAttempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client.
func (c *RetryClient) HTTPClient() *http.Client {
	return c.client
}

// Do sends the request until it gets 200 OK, a non-retryable reply, or runs
// out of attempts. On success the caller owns the response body.
func (c *RetryClient) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		statusErr := &StatusError{StatusCode: resp.StatusCode}
		lastErr = statusErr
		if !statusErr.Retryable() {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("unknown error")
	}
	return nil, fmt.Errorf("request failed: %w", lastErr)
}
