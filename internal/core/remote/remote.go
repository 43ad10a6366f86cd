// Package remote executes replayed actions against the upstream HTTP API.
// Failures are tagged with a retryability category at the point of origin
// so the rate limiter never has to guess from error text.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/core"
	"github.com/fieldsync/fieldsync/internal/core/queue"
	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
)

// Config describes the upstream API endpoint.
type Config struct {
	// BaseURL is the upstream root, without a trailing slash.
	BaseURL string

	// Timeout bounds a single request. Default: 30s.
	Timeout time.Duration
}

// Client issues requests through the rate limiter and classifies failures.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger attaches a logger. Default is a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient overrides the underlying http.Client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a Client. limiter may be nil to bypass throttling.
func New(cfg Config, limiter *ratelimit.Limiter, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues one request through the limiter. The endpoint key for window
// and retry accounting is "METHOD path".
func (c *Client) Do(ctx context.Context, method, path string, body []byte) error {
	op := func(ctx context.Context) error {
		return c.send(ctx, method, path, body)
	}
	if c.limiter == nil {
		return op(ctx)
	}
	return c.limiter.Throttle(ctx, method+" "+path, op)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("build request %s %s: %w", method, path, err))
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, refused connections) are
		// transient from the client's point of view.
		return ratelimit.Retryable(fmt.Errorf("request %s %s: %w", method, path, err))
	}
	defer resp.Body.Close() // nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		if wait := retryAfterHeader(resp); wait > 0 {
			c.logger.Debug("upstream asked to back off",
				zap.String("path", path),
				zap.Duration("retry_after", wait))
			return ratelimit.Retryable(fmt.Errorf("upstream returned %s (retry after %s)", resp.Status, wait))
		}
		return ratelimit.Retryable(fmt.Errorf("upstream returned %s", resp.Status))
	default:
		return ratelimit.Permanent(fmt.Errorf("upstream rejected request: %s", resp.Status))
	}
}

// Executor adapts the client into a queue replay function. Each action is
// posted to /actions/<type> with its stored payload.
func (c *Client) Executor() queue.Executor {
	return func(ctx context.Context, action core.OfflineAction) error {
		return c.Do(ctx, http.MethodPost, "/actions/"+action.Type, action.Payload)
	}
}

// Reachable probes the upstream health endpoint with a short deadline. The
// result feeds the queue's connectivity signal.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() // nolint:errcheck
	return resp.StatusCode < http.StatusInternalServerError
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}

	return 0
}
