// Command tickerprint polls stock prices and prints one line per ticker per
// cycle to stdout.
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

	"github.com/spf13/pflag"

	"github.com/rickgao/ticker-feed/internal/config"
	"github.com/rickgao/ticker-feed/internal/logging"
	"github.com/rickgao/ticker-feed/internal/poller"
	"github.com/rickgao/ticker-feed/internal/publish"
	"github.com/rickgao/ticker-feed/internal/quote"
	"github.com/rickgao/ticker-feed/internal/report"
	"github.com/rickgao/ticker-feed/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 after a signal, 1 on a fatal error
// and 2 on bad flags.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, err := config.ParseFlags("tickerprint", args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "tickerprint: %v\n", err)
		return 1
	}

	cfg, err := config.LoadAndValidate(flags.ConfigPath, flags, config.ModePrint)
	if err != nil {
		fmt.Fprintf(stderr, "tickerprint: %v\n", err)
		return 1
	}

	level, _ := cfg.Log.SlogLevel()
	logger := logging.NewLogger(stderr, level)
	slog.SetDefault(logger)

	logger.Info("starting tickerprint",
		"version", version.Version,
		"commit", version.Commit,
		"tickers", cfg.Tickers,
		"sleep_seconds", cfg.Poller.SleepSeconds,
		"provider", cfg.Source.Provider,
	)

	tickers, err := cfg.TickerSet()
	if err != nil {
		logger.Error("invalid tickers", "error", err)
		return 1
	}

	source, err := quote.NewSource(cfg.Source, logger.With("component", "quote"))
	if err != nil {
		logger.Error("failed to create price source", "error", err)
		return 1
	}

	handlers := []poller.Handler{report.NewConsole(stdout)}
	if cfg.Redis.Addr != "" {
		pub, err := publish.Connect(ctx, cfg.Redis, logger.With("component", "publish"))
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer pub.Close()
		handlers = append(handlers, pub)
		logger.Info("publishing prices to redis", "addr", cfg.Redis.Addr)
	}

	p, err := poller.New(poller.Config{
		Tickers:  tickers,
		Interval: cfg.Interval(),
		Timeout:  cfg.Poller.Timeout,
		FailFast: cfg.Poller.FailFast,
	}, source, poller.Handlers(handlers...), logger.With("component", "poller"))
	if err != nil {
		logger.Error("failed to create poller", "error", err)
		return 1
	}

	if flags.Once {
		stats, err := p.Cycle(ctx)
		if err != nil {
			logger.Error("poll cycle failed", "error", err)
			return 1
		}
		if stats.Errors > 0 {
			return 1
		}
		return 0
	}

	if err := p.Run(ctx); err != nil {
		logger.Error("poller stopped", "error", err)
		return 1
	}

	logger.Info("tickerprint stopped")
	return 0
}
