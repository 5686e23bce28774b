// Command tickeringest polls stock prices and ingests each observation as a
// row into a per-ticker table of the configured warehouse.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ticker-feed/internal/config"
	"github.com/rickgao/ticker-feed/internal/health"
	"github.com/rickgao/ticker-feed/internal/ingest"
	"github.com/rickgao/ticker-feed/internal/logging"
	"github.com/rickgao/ticker-feed/internal/poller"
	"github.com/rickgao/ticker-feed/internal/publish"
	"github.com/rickgao/ticker-feed/internal/quote"
	"github.com/rickgao/ticker-feed/internal/version"
)

const shutdownTimeout = 30 * time.Second

// newSource is replaced in tests.
var newSource = quote.NewSource

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 after a signal, 1 on a fatal error
// and 2 on bad flags.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags, err := config.ParseFlags("tickeringest", args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "tickeringest: %v\n", err)
		return 1
	}

	cfg, err := config.LoadAndValidate(flags.ConfigPath, flags, config.ModeIngest)
	if err != nil {
		fmt.Fprintf(stderr, "tickeringest: %v\n", err)
		return 1
	}

	level, _ := cfg.Log.SlogLevel()
	logger := logging.NewLogger(stderr, level)
	slog.SetDefault(logger)

	logger.Info("starting tickeringest",
		"version", version.Version,
		"commit", version.Commit,
		"tickers", cfg.Tickers,
		"sleep_seconds", cfg.Poller.SleepSeconds,
		"backend", cfg.Ingest.Backend,
		"tenant", cfg.Ingest.TenantID,
		"database", cfg.Ingest.Database,
	)

	tickers, err := cfg.TickerSet()
	if err != nil {
		logger.Error("invalid tickers", "error", err)
		return 1
	}

	source, err := newSource(cfg.Source, logger.With("component", "quote"))
	if err != nil {
		logger.Error("failed to create price source", "error", err)
		return 1
	}

	// Connect backend
	backend, err := ingest.OpenBackend(ctx, cfg.Ingest, logger.With("component", "ingest"))
	if err != nil {
		logger.Error("failed to open ingest backend", "error", err)
		return 1
	}
	defer backend.Close()

	// Provision one table per ticker before polling
	if err := ingest.ProvisionAll(ctx, backend.Provisioner, tickers, logger.With("component", "provision")); err != nil {
		logger.Error("failed to provision tables", "error", err)
		return 1
	}

	writer := ingest.NewWriter(ingest.WriterConfig{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
		QueueSize:     cfg.Writer.QueueSize,
	}, backend.Loader, logger.With("component", "writer"))
	if err := writer.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		return 1
	}

	handlers := []poller.Handler{ingest.NewObservationHandler(writer, cfg.Ingest.Database)}
	checks := []health.Check{{Name: backend.Name, Critical: true, Fn: backend.Ping}}

	if cfg.Redis.Addr != "" {
		pub, err := publish.Connect(ctx, cfg.Redis, logger.With("component", "publish"))
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			stopWriter(writer, logger)
			return 1
		}
		defer pub.Close()
		handlers = append(handlers, pub)
		checks = append(checks, health.Check{Name: "redis", Fn: pub.Ping})
	}

	p, err := poller.New(poller.Config{
		Tickers:  tickers,
		Interval: cfg.Interval(),
		Timeout:  cfg.Poller.Timeout,
		FailFast: cfg.Poller.FailFast,
	}, source, poller.Handlers(handlers...), logger.With("component", "poller"))
	if err != nil {
		logger.Error("failed to create poller", "error", err)
		stopWriter(writer, logger)
		return 1
	}

	if flags.Once {
		stats, err := p.Cycle(ctx)
		stopWriter(writer, logger)
		if err != nil {
			logger.Error("poll cycle failed", "error", err)
			return 1
		}
		if stats.Errors > 0 || writer.Stats().Errors > 0 {
			return 1
		}
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)

	// The writer stops only after the poller has returned, so no handler
	// can enqueue behind the final flush.
	pollerDone := make(chan struct{})
	g.Go(func() error {
		defer close(pollerDone)
		return p.Run(gctx)
	})

	if cfg.Health.Port > 0 {
		infos := []health.Info{
			{Name: "writer", Fn: func() any { return writer.Stats() }},
			{Name: "tickers", Fn: func() any { return tickers }},
		}
		srv := health.NewServer(cfg.Health.Port, health.NewHandler(checks, infos), logger.With("component", "health"))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		<-pollerDone
		return stopWriter(writer, logger)
	})

	logger.Info("tickeringest running", "health_port", cfg.Health.Port)

	if err := g.Wait(); err != nil {
		logger.Error("tickeringest stopped", "error", err)
		return 1
	}

	logger.Info("tickeringest stopped")
	return 0
}

func stopWriter(w *ingest.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		logger.Warn("writer did not stop cleanly", "error", err)
		return err
	}
	return nil
}
