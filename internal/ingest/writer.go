package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WriterConfig holds batching settings for a Writer.
type WriterConfig struct {
	BatchSize     int           // Flush once this many records are pending
	FlushInterval time.Duration // Flush pending records at least this often
	QueueSize     int           // Records buffered ahead of the batcher
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
		QueueSize:     1000,
	}
}

// WriterMetrics tracks writer counters.
type WriterMetrics struct {
	Enqueued int64 `json:"enqueued"` // Records accepted by Enqueue
	Inserts  int64 `json:"inserts"`  // Records loaded successfully
	Errors   int64 `json:"errors"`   // Failed Load calls
	Flushes  int64 `json:"flushes"`  // Successful Load calls
	Dropped  int64 `json:"dropped"`  // Records rejected because the queue was full
}

type pending struct {
	target Target
	rec    Record
}

// Writer is a Sink that batches records and loads them in the background.
// Ingestion is fire-and-forget: a failed load is logged and counted, never
// retried.
type Writer struct {
	cfg    WriterConfig
	loader Loader
	logger *slog.Logger

	queue chan pending

	// closed is written under mu's write lock. Enqueue holds the read lock
	// across its send, so once Stop has set closed every accepted record is
	// already in queue for the final drain.
	mu     sync.RWMutex
	closed bool

	// Batching
	batch       []pending
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	loadCtx context.Context // Not cancelled by Stop so in-flight loads finish
	wg      sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewWriter creates a new Writer. Non-positive settings fall back to
// DefaultWriterConfig.
func NewWriter(cfg WriterConfig, loader Loader, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Writer{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		queue:  make(chan pending, cfg.QueueSize),
		batch:  make([]pending, 0, cfg.BatchSize),
	}
}

// Enqueue queues rec for target. It never waits for the queue to drain: a
// full queue drops the record and returns ErrQueueFull.
func (w *Writer) Enqueue(ctx context.Context, target Target, rec Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case w.queue <- pending{target: target, rec: rec}:
		w.batchMu.Lock()
		w.metrics.Enqueued++
		w.batchMu.Unlock()
		return nil
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("ingest queue full, dropping record", "target", target.String())
		return ErrQueueFull
	}
}

// Start begins consuming queued records and loading them.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.loadCtx = context.WithoutCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("ingest writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"queue_size", w.cfg.QueueSize,
	)
	return nil
}

// Stop stops accepting records, drains the queue and performs a final
// flush bounded by ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping ingest writer")
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("ingest writer stop timed out")
		return ctx.Err()
	}

	w.drain()
	w.flush(ctx)

	stats := w.Stats()
	w.logger.Info("ingest writer stopped",
		"enqueued", stats.Enqueued,
		"inserts", stats.Inserts,
		"errors", stats.Errors,
		"dropped", stats.Dropped,
	)
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the queue and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case p := <-w.queue:
			w.add(p)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.loadCtx)
		}
	}
}

// drain moves everything left in the queue into the batch.
func (w *Writer) drain() {
	for {
		select {
		case p := <-w.queue:
			w.batchMu.Lock()
			w.batch = append(w.batch, p)
			w.batchMu.Unlock()
		default:
			return
		}
	}
}

func (w *Writer) add(p pending) {
	w.batchMu.Lock()
	w.batch = append(w.batch, p)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.loadCtx)
	}
}

// flush loads the current batch, one Load call per target.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]pending, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	for _, g := range groupByTarget(batch) {
		start := time.Now()
		rows := 0
		for _, rec := range g.recs {
			rows += rec.Len()
		}

		if err := w.loader.Load(ctx, g.target, g.recs); err != nil {
			w.logger.Error("ingest load failed",
				"target", g.target.String(),
				"records", len(g.recs),
				"error", err,
			)
			w.batchMu.Lock()
			w.metrics.Errors++
			w.batchMu.Unlock()
			continue
		}

		w.batchMu.Lock()
		w.metrics.Inserts += int64(len(g.recs))
		w.metrics.Flushes++
		w.batchMu.Unlock()

		w.logger.Debug("flushed records",
			"target", g.target.String(),
			"records", len(g.recs),
			"rows", rows,
			"duration", time.Since(start),
		)
	}
}

type targetGroup struct {
	target Target
	recs   []Record
}

// groupByTarget groups records by target, keeping first-seen target order
// and arrival order within a target.
func groupByTarget(batch []pending) []targetGroup {
	index := make(map[Target]int)
	var groups []targetGroup
	for _, p := range batch {
		i, ok := index[p.target]
		if !ok {
			i = len(groups)
			index[p.target] = i
			groups = append(groups, targetGroup{target: p.target})
		}
		groups[i].recs = append(groups[i].recs, p.rec)
	}
	return groups
}
