// AngelaMos | 2026
// storage.go

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

// Client talks to the Supabase Storage REST API with the project's
// service key.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	maxElapsed time.Duration
	logger     *slog.Logger
}

func NewClient(cfg config.StorageConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.ProjectURL, "/"),
		serviceKey: cfg.ServiceKey,
		http:       &http.Client{Timeout: timeout},
		maxElapsed: 10 * time.Second,
		logger:     logger.With("component", "storage"),
	}
}

// Put uploads data to bucket/path, replacing any existing object.
func (c *Client) Put(
	ctx context.Context,
	bucket, path, contentType string,
	data []byte,
) error {
	endpoint := c.objectURL(bucket, path)

	op := func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			endpoint,
			bytes.NewReader(data),
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		c.authorize(req)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")
		req.Header.Set("Cache-Control", "max-age=3600")

		return c.do(req)
	}

	if err := c.retry(ctx, op); err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, path, err)
	}

	c.logger.Debug("object stored",
		"bucket", bucket,
		"path", path,
		"bytes", len(data),
	)
	return nil
}

// Delete removes bucket/path. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, bucket, path string) error {
	endpoint := c.objectURL(bucket, path)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		c.authorize(req)

		err = c.do(req)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := c.retry(ctx, op); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, path, err)
	}

	return nil
}

// PublicURL is the unauthenticated URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf(
		"%s/storage/v1/object/public/%s/%s",
		c.baseURL,
		url.PathEscape(bucket),
		escapePath(path),
	)
}

func (c *Client) objectURL(bucket, path string) string {
	return fmt.Sprintf(
		"%s/storage/v1/object/%s/%s",
		c.baseURL,
		url.PathEscape(bucket),
		escapePath(path),
	)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("storage request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10)) //nolint:errcheck
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("storage: %s: %w", msg, core.ErrNotFound))
	case resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("storage status %d: %s: %w", resp.StatusCode, msg, core.ErrUpstream)
	default:
		return backoff.Permanent(
			fmt.Errorf("storage status %d: %s: %w", resp.StatusCode, msg, core.ErrUpstream),
		)
	}
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed

	return backoff.RetryNotify(
		op,
		backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("storage request failed, retrying",
				"error", err,
				"wait", wait,
			)
		},
	)
}

func escapePath(path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
