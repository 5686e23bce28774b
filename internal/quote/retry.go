package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/ticker-feed/internal/version"
)

// APIError is a non-2xx answer from Finnhub.
type APIError struct {
	StatusCode int
	Message    string        // Finnhub's "error" field, or the status text
	RetryAfter time.Duration // From Retry-After or X-Ratelimit-Reset; 0 if absent
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("finnhub %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed if sent again.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// transportError wraps a failure to get any response at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "finnhub transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// getJSON performs a GET, retrying rate limits, server errors and transport
// failures, and decodes the body into result.
func (f *Finnhub) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	for attempt := 0; ; attempt++ {
		body, err := f.fetch(ctx, path, query)
		if err == nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
			return nil
		}

		wait, ok := f.retryDelay(err, attempt)
		if !ok {
			return err
		}
		if attempt >= f.cfg.MaxRetries {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		f.logger.Warn("retrying finnhub request",
			"path", path,
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		if err := f.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// fetch performs a single request.
func (f *Finnhub) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := f.cfg.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if f.cfg.APIKey != "" {
		req.Header.Set("X-Finnhub-Token", f.cfg.APIKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
			RetryAfter: retryAfter(resp.Header, f.now()),
			Body:       body,
		}
	}

	return body, nil
}

// retryDelay decides whether err is worth another attempt and how long to
// wait first. A server-provided delay wins over exponential backoff; both
// are capped at MaxRetryWait.
func (f *Finnhub) retryDelay(err error, attempt int) (time.Duration, bool) {
	var wait time.Duration

	var apiErr *APIError
	var tErr *transportError
	switch {
	case errors.As(err, &apiErr):
		if !apiErr.IsRetryable() {
			return 0, false
		}
		wait = apiErr.RetryAfter
		if wait <= 0 {
			wait = f.backoff(attempt)
		}
	case errors.As(err, &tErr):
		wait = f.backoff(attempt)
	default:
		return 0, false
	}

	if wait > f.cfg.MaxRetryWait {
		wait = f.cfg.MaxRetryWait
	}
	return wait, true
}

// backoff returns RetryBackoff doubled per attempt, with jitter of
// 0.5x to 1.5x.
func (f *Finnhub) backoff(attempt int) time.Duration {
	base := f.cfg.RetryBackoff << attempt
	if base <= 0 {
		return 0
	}
	return base/2 + time.Duration(rand.Int63n(int64(base)))
}

// retryAfter reads the server's requested delay. Finnhub sends Retry-After
// on some 429s and X-Ratelimit-Reset (unix seconds) on all of them.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := at.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	if v := h.Get("X-Ratelimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(unix, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return 0
}

// errorMessage extracts Finnhub's {"error": "..."} message.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(status)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
