package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/ticker-feed/internal/config"
)

var (
	// ErrUnknownTicker is returned when the provider has no quote for a ticker.
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrNoPrice is returned when a quote exists but carries no tradable price.
	ErrNoPrice = errors.New("no price available")
)

// Source looks up the current price of a ticker.
type Source interface {
	Price(ctx context.Context, ticker string) (float64, error)
}

// SourceFunc is a function adapter for Source.
type SourceFunc func(ctx context.Context, ticker string) (float64, error)

func (f SourceFunc) Price(ctx context.Context, ticker string) (float64, error) {
	return f(ctx, ticker)
}

// NewSource builds the provider selected in cfg.
func NewSource(cfg config.SourceConfig, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case config.ProviderYahoo:
		return NewYahoo(), nil
	case config.ProviderFinnhub:
		return NewFinnhub(cfg, WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unsupported price provider %q", cfg.Provider)
	}
}
