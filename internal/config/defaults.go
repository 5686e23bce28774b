package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTickers       = "msft"
	DefaultSleepSeconds  = 10
	DefaultPollTimeout   = 30 * time.Second
	DefaultProvider      = ProviderYahoo
	DefaultFinnhubURL    = "https://finnhub.io/api/v1"
	DefaultSourceTimeout = 10 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 1 * time.Second
	DefaultMaxRetryWait  = 1 * time.Minute
	DefaultBackend       = BackendPostgres
	DefaultSSLMode       = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
	DefaultBatchSize     = 100
	DefaultFlushInterval = 1 * time.Second
	DefaultQueueSize     = 1000
	DefaultRedisTTL      = 1 * time.Hour
	DefaultLogLevel      = "info"
)

// Price source providers.
const (
	ProviderYahoo   = "yahoo"
	ProviderFinnhub = "finnhub"
)

// Ingestion backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendKafka    = "kafka"
)

func (c *Config) applyDefaults() {
	if c.Tickers == "" {
		c.Tickers = DefaultTickers
	}

	// Poller defaults
	if c.Poller.SleepSeconds == 0 {
		c.Poller.SleepSeconds = DefaultSleepSeconds
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Source defaults
	if c.Source.Provider == "" {
		c.Source.Provider = DefaultProvider
	}
	if c.Source.BaseURL == "" && c.Source.Provider == ProviderFinnhub {
		c.Source.BaseURL = DefaultFinnhubURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Source.MaxRetries == 0 {
		c.Source.MaxRetries = DefaultMaxRetries
	}
	if c.Source.RetryBackoff == 0 {
		c.Source.RetryBackoff = DefaultRetryBackoff
	}
	if c.Source.MaxRetryWait == 0 {
		c.Source.MaxRetryWait = DefaultMaxRetryWait
	}

	// Ingest defaults
	if c.Ingest.Backend == "" {
		c.Ingest.Backend = DefaultBackend
	}
	if c.Ingest.SSLMode == "" {
		c.Ingest.SSLMode = DefaultSSLMode
	}
	if c.Ingest.MaxConns == 0 {
		c.Ingest.MaxConns = DefaultMaxConns
	}
	if c.Ingest.MinConns == 0 {
		c.Ingest.MinConns = DefaultMinConns
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.QueueSize == 0 {
		c.Writer.QueueSize = DefaultQueueSize
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
