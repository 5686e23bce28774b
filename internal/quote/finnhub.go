package quote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/ticker-feed/internal/config"
)

// QuoteResponse from GET /quote.
type QuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"` // Unix seconds of the last trade
}

// Finnhub reads quotes from the Finnhub REST API. Rate-limited and failed
// requests are retried as described by the source configuration.
type Finnhub struct {
	cfg        config.SourceConfig
	httpClient *http.Client
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// FinnhubOption configures a Finnhub source.
type FinnhubOption func(*Finnhub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FinnhubOption {
	return func(f *Finnhub) {
		f.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout wins over cfg.Timeout.
func WithHTTPClient(hc *http.Client) FinnhubOption {
	return func(f *Finnhub) {
		f.httpClient = hc
	}
}

// NewFinnhub creates a Finnhub source from cfg. Unset BaseURL, Timeout and
// MaxRetryWait take the config defaults; MaxRetries of 0 disables retries.
func NewFinnhub(cfg config.SourceConfig, opts ...FinnhubOption) *Finnhub {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultFinnhubURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultSourceTimeout
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = config.DefaultMaxRetryWait
	}

	f := &Finnhub{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetQuote fetches the latest quote for a symbol.
func (f *Finnhub) GetQuote(ctx context.Context, symbol string) (*QuoteResponse, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var resp QuoteResponse
	if err := f.getJSON(ctx, "/quote", query, &resp); err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}

	return &resp, nil
}

// Price returns the current price of ticker.
// Finnhub answers unknown symbols with an all-zero quote.
func (f *Finnhub) Price(ctx context.Context, ticker string) (float64, error) {
	q, err := f.GetQuote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if q.Current == 0 && q.Timestamp == 0 {
		return 0, fmt.Errorf("%s: %w", ticker, ErrUnknownTicker)
	}
	if q.Current <= 0 {
		return 0, fmt.Errorf("%s: %w", ticker, ErrNoPrice)
	}
	return q.Current, nil
}
