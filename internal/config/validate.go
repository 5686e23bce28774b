package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Mode selects which sections Validate requires.
type Mode int

const (
	// ModePrint validates what tickerprint needs.
	ModePrint Mode = iota
	// ModeIngest additionally requires the ingest section.
	ModeIngest
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate(mode Mode) error {
	if _, err := c.TickerSet(); err != nil {
		return fmt.Errorf("tickers: %w", err)
	}

	if c.Poller.SleepSeconds < 1 {
		return fmt.Errorf("poller.sleep_seconds must be >= 1, got %d", c.Poller.SleepSeconds)
	}
	if c.Poller.Timeout <= 0 {
		return errors.New("poller.timeout must be positive")
	}

	switch c.Source.Provider {
	case ProviderYahoo:
	case ProviderFinnhub:
		if c.Source.APIKey == "" {
			return errors.New("source.api_key is required for provider finnhub")
		}
		if c.Source.BaseURL == "" {
			return errors.New("source.base_url is required for provider finnhub")
		}
	default:
		return fmt.Errorf("source.provider %q is not supported", c.Source.Provider)
	}
	if c.Source.MaxRetries < 0 {
		return errors.New("source.max_retries must be >= 0")
	}
	if c.Source.MaxRetryWait < 0 {
		return errors.New("source.max_retry_wait must be >= 0")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	if c.Redis.DB < 0 {
		return errors.New("redis.db must be >= 0")
	}

	if mode != ModeIngest {
		return nil
	}

	if err := c.Ingest.validate("ingest"); err != nil {
		return err
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.QueueSize < 1 {
		return errors.New("writer.queue_size must be >= 1")
	}
	if c.Writer.FlushInterval <= 0 {
		return errors.New("writer.flush_interval must be positive")
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (ic *IngestConfig) validate(prefix string) error {
	if ic.Database == "" {
		return fmt.Errorf("%s.database is required", prefix)
	}

	switch ic.Backend {
	case BackendPostgres:
		if ic.TenantID == "" {
			return fmt.Errorf("%s.tenant_id is required", prefix)
		}
		if ic.DatabaseEndpoint == "" {
			return fmt.Errorf("%s.database_endpoint is required", prefix)
		}
		if ic.IngestEndpoint == "" {
			return fmt.Errorf("%s.ingest_endpoint is required", prefix)
		}
		if ic.MaxConns < 1 {
			return fmt.Errorf("%s.max_conns must be >= 1", prefix)
		}
		if ic.MinConns < 0 {
			return fmt.Errorf("%s.min_conns must be >= 0", prefix)
		}
		if ic.MinConns > ic.MaxConns {
			return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, ic.MinConns, ic.MaxConns)
		}
	case BackendSQLite:
	case BackendKafka:
		if len(ic.BrokerList()) == 0 {
			return fmt.Errorf("%s.brokers is required for backend kafka", prefix)
		}
	default:
		return fmt.Errorf("%s.backend %q is not supported", prefix, ic.Backend)
	}
	return nil
}

// BrokerList splits Brokers on commas, dropping blanks.
func (ic *IngestConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(ic.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// SlogLevel maps the configured level name to a slog.Level.
func (lc LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q is not valid", lc.Level)
	}
	return level, nil
}
