// Package snapshotapi talks to another dashboard instance's snapshot store.
package snapshotapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/observability"
)

const (
	snapshotPath = "/api/snapshot"
	maxAttempts  = 3
	baseBackoff  = 200 * time.Millisecond
	maxBackoff   = 2 * time.Second
)

// StatusError is returned when the remote store answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("snapshot store error: status %d: %s", e.Code, e.Body)
}

// Client reads and publishes snapshots over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for the store rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns the remote snapshot.
func (c *Client) Fetch(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.do(ctx, http.MethodGet, nil, &snap, "fetch", maxAttempts); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Publish sends the input to the remote store and returns what it stored.
// A 400 from the store maps to domain.ErrMalformedSnapshot. Publish is sent
// once: a retried write would stamp a second updatedAt.
func (c *Client) Publish(ctx context.Context, in domain.SnapshotInput) (domain.Snapshot, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := c.do(ctx, http.MethodPost, body, &snap, "publish", 1); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return domain.Snapshot{}, fmt.Errorf("%w: %s", domain.ErrMalformedSnapshot, se.Body)
		}
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// do retries transport errors and 5xx answers with exponential backoff,
// up to attempts tries.
func (c *Client) do(ctx context.Context, method string, body []byte, out any, op string, attempts int) error {
	start := time.Now()
	defer func() {
		c.metrics.RemoteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	backoff := baseBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		retry, err := c.once(ctx, method, body, out, op)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}
		c.logger.Warn("snapshot store request failed, retrying",
			"op", op, "attempt", attempt, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method string, body []byte, out any, op string) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+snapshotPath, reader)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%s snapshot request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode >= 500, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
