package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxRetryDelay = 5 * time.Second

// client posts JSON to an inference server and retries on 429 and 5xx responses.
type client struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

func newClient(baseURL string, httpClient *http.Client, timeout time.Duration, maxRetries int) (*client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       httpClient,
		timeout:    timeout,
		maxRetries: maxRetries,
		sleep:      sleepContext,
	}, nil
}

// postJSON sends in to path and decodes the response into out.
func (c *client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := c.post(ctx, path, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return Wrap(fmt.Errorf("%s: decode response: %w", path, err))
	}
	return nil
}

// post sends in to path and returns the raw response body. The whole exchange,
// retries included, is bounded by the client timeout.
func (c *client) post(ctx context.Context, path string, in any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return nil, Wrap(fmt.Errorf("marshal request: %w", err))
	}
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt-1, lastErr)); err != nil {
				return nil, Wrap(fmt.Errorf("%s: %w (last error: %v)", path, err, lastErr))
			}
		}
		payload, retry, err := c.do(ctx, url, body)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, Wrap(fmt.Errorf("%s: %w", path, lastErr))
}

type retryAfterError struct {
	status int
	delay  time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("server returned status %d", e.status)
}

// do performs one request. retry reports whether a failure is worth another attempt.
func (c *client) do(ctx context.Context, url string, body []byte) (payload []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		e := &retryAfterError{status: resp.StatusCode}
		if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs >= 0 {
			e.delay = time.Duration(secs) * time.Second
		}
		return nil, true, e
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	payload, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	return payload, false, nil
}

func (c *client) backoff(attempt int, lastErr error) time.Duration {
	var ra *retryAfterError
	if errors.As(lastErr, &ra) && ra.delay > 0 {
		return min(ra.delay, maxRetryDelay)
	}
	return retryDelay(attempt)
}

// retryDelay is exponential from 200ms, capped at five seconds.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 8 {
		return maxRetryDelay
	}
	return min(200*time.Millisecond<<attempt, maxRetryDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
