package quote

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	yquote "github.com/piquette/finance-go/quote"
)

// Yahoo reads regular-market prices from Yahoo Finance.
type Yahoo struct {
	get func(symbol string) (*finance.Quote, error)
}

// NewYahoo creates a Yahoo Finance source.
func NewYahoo() *Yahoo {
	return &Yahoo{get: yquote.Get}
}

// Price returns the regular-market price of ticker.
func (y *Yahoo) Price(ctx context.Context, ticker string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	q, err := y.lookup(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if q == nil {
		return 0, fmt.Errorf("%s: %w", ticker, ErrUnknownTicker)
	}
	if q.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("%s (market state %s): %w", ticker, q.MarketState, ErrNoPrice)
	}
	return q.RegularMarketPrice, nil
}

type yahooResult struct {
	q   *finance.Quote
	err error
}

// lookup runs get until it answers or ctx ends. finance-go takes no context,
// so an abandoned call finishes in the background and its result is dropped.
func (y *Yahoo) lookup(ctx context.Context, ticker string) (*finance.Quote, error) {
	done := make(chan yahooResult, 1)
	go func() {
		q, err := y.get(ticker)
		done <- yahooResult{q: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get yahoo quote %s: %w", ticker, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("get yahoo quote %s: %w", ticker, r.err)
		}
		return r.q, nil
	}
}
