package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/ticker-feed/internal/model"
	"github.com/rickgao/ticker-feed/internal/quote"
)

// Config holds poller configuration.
type Config struct {
	Tickers  model.TickerSet
	Interval time.Duration // Sleep between the end of one cycle and the start of the next
	Timeout  time.Duration // Per-ticker fetch timeout (0 = none)
	FailFast bool          // Abort on the first per-ticker failure instead of skipping it
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tickers:  model.TickerSet{"msft"},
		Interval: 10 * time.Second,
		Timeout:  30 * time.Second,
	}
}

// CycleStats summarises one poll cycle.
type CycleStats struct {
	ID       uuid.UUID
	Tickers  int
	Fetched  int
	Errors   int
	Duration time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// Poller periodically fetches prices for a fixed ticker set.
type Poller struct {
	cfg     Config
	source  quote.Source
	handler Handler
	clock   Clock
	logger  *slog.Logger
}

// New creates a new Poller.
func New(cfg Config, source quote.Source, handler Handler, logger *slog.Logger, opts ...Option) (*Poller, error) {
	if len(cfg.Tickers) == 0 {
		return nil, model.ErrEmptyTickerSet
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.Interval)
	}
	if source == nil {
		return nil, errors.New("price source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		clock:   RealClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run polls until ctx is cancelled. It returns nil on cancellation and a
// non-nil error only when FailFast is set and a ticker fails.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("ticker poller started",
		"tickers", p.cfg.Tickers.String(),
		"interval", p.cfg.Interval,
		"fail_fast", p.cfg.FailFast,
	)

	for {
		if _, err := p.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}

		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			break
		}
	}

	p.logger.Info("ticker poller stopped")
	return nil
}

// Cycle queries every ticker once, in order.
func (p *Poller) Cycle(ctx context.Context) (CycleStats, error) {
	start := p.clock.Now()
	stats := CycleStats{ID: uuid.New(), Tickers: len(p.cfg.Tickers)}
	logger := p.logger.With("cycle", stats.ID)

	for _, ticker := range p.cfg.Tickers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := p.pollTicker(ctx, ticker); err != nil {
			stats.Errors++
			if p.cfg.FailFast {
				return stats, fmt.Errorf("poll %s: %w", ticker, err)
			}
			logger.Warn("failed to poll ticker",
				"ticker", ticker,
				"err", err,
			)
			continue
		}
		stats.Fetched++
	}

	stats.Duration = p.clock.Now().Sub(start)
	logger.Info("poll cycle complete",
		"tickers", stats.Tickers,
		"fetched", stats.Fetched,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

// pollTicker fetches and handles a single ticker's price.
func (p *Poller) pollTicker(ctx context.Context, ticker string) error {
	fetchCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	price, err := p.source.Price(fetchCtx, ticker)
	if err != nil {
		return err
	}

	obs := model.Observation{
		Ticker: ticker,
		Time:   p.clock.Now(),
		Price:  price,
	}

	if p.handler != nil {
		if err := p.handler.HandleObservation(ctx, obs); err != nil {
			return fmt.Errorf("handle observation: %w", err)
		}
	}

	return nil
}
