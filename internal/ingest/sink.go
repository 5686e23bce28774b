package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/ticker-feed/internal/model"
	"github.com/rickgao/ticker-feed/internal/poller"
)

var (
	// ErrQueueFull is returned by Enqueue when the writer cannot accept more
	// records. The record is dropped.
	ErrQueueFull = errors.New("ingest queue full")

	// ErrWriterClosed is returned by Enqueue after Stop.
	ErrWriterClosed = errors.New("ingest writer closed")
)

// Provisioner creates destination tables.
type Provisioner interface {
	// EnsureTable creates table if it does not exist. A table that already
	// exists is not an error.
	EnsureTable(ctx context.Context, table string) error
}

// Sink accepts records for asynchronous ingestion.
type Sink interface {
	// Enqueue queues rec for target and returns once it is queued, not
	// once it is durable.
	Enqueue(ctx context.Context, target Target, rec Record) error
}

// Loader writes a batch of records for one target to a backend.
type Loader interface {
	Load(ctx context.Context, target Target, recs []Record) error
}

// ProvisionAll ensures a table exists for every ticker, in order. The first
// failure is returned.
func ProvisionAll(ctx context.Context, p Provisioner, tickers model.TickerSet, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, ticker := range tickers {
		if err := p.EnsureTable(ctx, ticker); err != nil {
			return fmt.Errorf("provision table %s: %w", ticker, err)
		}
		logger.Info("table ready", "ticker", ticker)
	}
	return nil
}

// NewObservationHandler returns a poller handler that builds a record for
// each observation and queues it for the ticker's table in database.
func NewObservationHandler(sink Sink, database string) poller.Handler {
	return poller.HandlerFunc(func(ctx context.Context, obs model.Observation) error {
		return sink.Enqueue(ctx, TargetFor(database, obs.Ticker), BuildRecord(obs))
	})
}
