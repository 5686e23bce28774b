package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/ticker-feed/internal/config"
)

var fixedNow = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

// newTestFinnhub returns a source against baseURL whose waits are recorded
// instead of slept.
func newTestFinnhub(cfg config.SourceConfig, opts ...FinnhubOption) (*Finnhub, *[]time.Duration) {
	f := NewFinnhub(cfg, opts...)
	var waits []time.Duration
	f.now = func() time.Time { return fixedNow }
	f.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return f, &waits
}

// scripted serves the handlers in order, repeating the last one.
func scripted(t *testing.T, steps ...http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(steps) {
			n = len(steps) - 1
		}
		steps[n](w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func quoteOK(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"c":187.32,"t":1705320000}`))
}

func status(code int, headers map[string]string, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(code)
		w.Write([]byte(body))
	}
}

func TestNewFinnhub_Defaults(t *testing.T) {
	f := NewFinnhub(config.SourceConfig{APIKey: "key"})

	if f.cfg.BaseURL != config.DefaultFinnhubURL {
		t.Errorf("BaseURL = %q, want %q", f.cfg.BaseURL, config.DefaultFinnhubURL)
	}
	if f.httpClient.Timeout != config.DefaultSourceTimeout {
		t.Errorf("Timeout = %v, want %v", f.httpClient.Timeout, config.DefaultSourceTimeout)
	}
	if f.cfg.MaxRetryWait != config.DefaultMaxRetryWait {
		t.Errorf("MaxRetryWait = %v, want %v", f.cfg.MaxRetryWait, config.DefaultMaxRetryWait)
	}
	if f.cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", f.cfg.MaxRetries)
	}

	custom := &http.Client{Timeout: 3 * time.Second}
	if f := NewFinnhub(config.SourceConfig{}, WithHTTPClient(custom)); f.httpClient != custom {
		t.Error("custom HTTP client not set")
	}
}

func TestFinnhub_RequestHeaders(t *testing.T) {
	server, _ := scripted(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Finnhub-Token"); got != "test-key" {
			t.Errorf("X-Finnhub-Token = %q, want test-key", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "ticker-feed/") {
			t.Errorf("User-Agent = %q, want ticker-feed/ prefix", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "MSFT" {
			t.Errorf("symbol = %q, want MSFT", got)
		}
		quoteOK(w, r)
	})

	f, _ := newTestFinnhub(config.SourceConfig{BaseURL: server.URL, APIKey: "test-key"})
	if _, err := f.Price(context.Background(), "MSFT"); err != nil {
		t.Fatalf("Price() error = %v", err)
	}
}

func TestFinnhub_HonoursRetryAfter(t *testing.T) {
	server, calls := scripted(t,
		status(http.StatusTooManyRequests, map[string]string{"Retry-After": "7"}, `{"error":"API limit reached"}`),
		quoteOK,
	)
	f, waits := newTestFinnhub(config.SourceConfig{
		BaseURL:      server.URL,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	})

	got, err := f.Price(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if got != 187.32 {
		t.Errorf("Price() = %v, want 187.32", got)
	}
	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2", calls.Load())
	}
	if len(*waits) != 1 || (*waits)[0] != 7*time.Second {
		t.Errorf("waits = %v, want [7s]", *waits)
	}
}

func TestFinnhub_RateLimitResetHeader(t *testing.T) {
	reset := strconv.FormatInt(fixedNow.Add(12*time.Second).Unix(), 10)
	server, _ := scripted(t,
		status(http.StatusTooManyRequests, map[string]string{"X-Ratelimit-Reset": reset}, ""),
		quoteOK,
	)
	f, waits := newTestFinnhub(config.SourceConfig{BaseURL: server.URL, MaxRetries: 1, RetryBackoff: time.Second})

	if _, err := f.Price(context.Background(), "MSFT"); err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if len(*waits) != 1 || (*waits)[0] != 12*time.Second {
		t.Errorf("waits = %v, want [12s]", *waits)
	}
}

func TestFinnhub_RetryWaitCapped(t *testing.T) {
	server, _ := scripted(t,
		status(http.StatusTooManyRequests, map[string]string{"Retry-After": "3600"}, ""),
		quoteOK,
	)
	f, waits := newTestFinnhub(config.SourceConfig{
		BaseURL:      server.URL,
		MaxRetries:   1,
		MaxRetryWait: 30 * time.Second,
	})

	if _, err := f.Price(context.Background(), "MSFT"); err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if len(*waits) != 1 || (*waits)[0] != 30*time.Second {
		t.Errorf("waits = %v, want [30s]", *waits)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestFinnhub_RetriesTransportErrors(t *testing.T) {
	server, calls := scripted(t, quoteOK)

	var failures atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if failures.Add(1) <= 2 {
			return nil, errors.New("connection reset by peer")
		}
		return http.DefaultTransport.RoundTrip(r)
	})}
	f, waits := newTestFinnhub(config.SourceConfig{
		BaseURL:      server.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}, WithHTTPClient(hc))

	if _, err := f.Price(context.Background(), "MSFT"); err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests reaching server = %d, want 1", calls.Load())
	}
	if len(*waits) != 2 {
		t.Fatalf("waits = %v, want 2 backoffs", *waits)
	}
	// Jittered exponential backoff: attempt n waits 0.5x to 1.5x of 100ms << n.
	for i, w := range *waits {
		base := 100 * time.Millisecond << i
		if w < base/2 || w >= base/2+base {
			t.Errorf("waits[%d] = %v, want in [%v, %v)", i, w, base/2, base/2+base)
		}
	}
}

func TestFinnhub_ServerErrorsExhaustRetries(t *testing.T) {
	server, calls := scripted(t, status(http.StatusBadGateway, nil, ""))
	f, waits := newTestFinnhub(config.SourceConfig{BaseURL: server.URL, MaxRetries: 2, RetryBackoff: time.Millisecond})

	_, err := f.Price(context.Background(), "MSFT")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want wrapped 502 APIError", err)
	}
	if !strings.Contains(err.Error(), "giving up after 3 attempts") {
		t.Errorf("err = %v, want attempt count", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want 3", calls.Load())
	}
	if len(*waits) != 2 {
		t.Errorf("waits = %d, want 2", len(*waits))
	}
}

func TestFinnhub_ClientErrorNotRetried(t *testing.T) {
	server, calls := scripted(t, status(http.StatusUnauthorized, nil, `{"error":"Invalid API key"}`))
	f, waits := newTestFinnhub(config.SourceConfig{BaseURL: server.URL, MaxRetries: 3})

	_, err := f.Price(context.Background(), "MSFT")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Message != "Invalid API key" {
		t.Errorf("Message = %q, want Invalid API key", apiErr.Message)
	}
	if apiErr.Error() != "finnhub 401: Invalid API key" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
	if calls.Load() != 1 || len(*waits) != 0 {
		t.Errorf("requests = %d, waits = %v; want 1 request and no waits", calls.Load(), *waits)
	}
}

func TestFinnhub_ContextCancelledWhileWaiting(t *testing.T) {
	server, _ := scripted(t, status(http.StatusTooManyRequests, map[string]string{"Retry-After": "60"}, ""))
	f := NewFinnhub(config.SourceConfig{BaseURL: server.URL, MaxRetries: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Price(ctx, "MSFT")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Price() took %v, want it to stop at the deadline", elapsed)
	}
}

func TestAPIError_IsRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		if got := (&APIError{StatusCode: tt.code}).IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable() for %d = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
	}{
		{name: "none", want: 0},
		{name: "seconds", headers: map[string]string{"Retry-After": "5"}, want: 5 * time.Second},
		{name: "http date", headers: map[string]string{"Retry-After": fixedNow.Add(90 * time.Second).Format(http.TimeFormat)}, want: 90 * time.Second},
		{name: "date in the past", headers: map[string]string{"Retry-After": fixedNow.Add(-time.Minute).Format(http.TimeFormat)}, want: 0},
		{name: "garbage", headers: map[string]string{"Retry-After": "soon"}, want: 0},
		{name: "reset header", headers: map[string]string{"X-Ratelimit-Reset": strconv.FormatInt(fixedNow.Unix()+20, 10)}, want: 20 * time.Second},
		{
			name: "retry-after wins",
			headers: map[string]string{
				"Retry-After":       "2",
				"X-Ratelimit-Reset": strconv.FormatInt(fixedNow.Unix()+20, 10),
			},
			want: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := retryAfter(h, fixedNow); got != tt.want {
				t.Errorf("retryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
