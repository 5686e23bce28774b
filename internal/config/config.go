package config

import (
	"time"

	"github.com/rickgao/ticker-feed/internal/model"
)

// Config is the root configuration shared by tickerprint and tickeringest.
type Config struct {
	Tickers string       `yaml:"tickers"` // Comma-separated ticker list
	Poller  PollerConfig `yaml:"poller"`
	Source  SourceConfig `yaml:"source"`
	Ingest  IngestConfig `yaml:"ingest"`
	Writer  WriterConfig `yaml:"writer"`
	Redis   RedisConfig  `yaml:"redis"`
	Health  HealthConfig `yaml:"health"`
	Log     LogConfig    `yaml:"log"`
}

// PollerConfig holds poll loop settings.
type PollerConfig struct {
	SleepSeconds int           `yaml:"sleep_seconds"`
	Timeout      time.Duration `yaml:"timeout"`   // Per-ticker fetch timeout
	FailFast     bool          `yaml:"fail_fast"` // Abort on the first per-ticker failure
}

// SourceConfig selects and configures the market-data API.
type SourceConfig struct {
	Provider     string        `yaml:"provider"` // "yahoo" or "finnhub"
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxRetryWait time.Duration `yaml:"max_retry_wait"` // Cap on any single wait, including Retry-After
}

// IngestConfig describes where tickeringest provisions tables and loads rows.
type IngestConfig struct {
	Backend          string `yaml:"backend"`           // "postgres", "sqlite" or "kafka"
	TenantID         string `yaml:"tenant_id"`         // Namespace that owns the per-ticker tables
	Database         string `yaml:"database"`          // Target database name
	DatabaseEndpoint string `yaml:"database_endpoint"` // Used for provisioning
	IngestEndpoint   string `yaml:"ingest_endpoint"`   // Used for loading rows
	Brokers          string `yaml:"brokers"`           // Comma-separated Kafka brokers
	Hypertable       bool   `yaml:"hypertable"`        // Convert new tables to TimescaleDB hypertables
	SSLMode          string `yaml:"ssl_mode"`
	MaxConns         int    `yaml:"max_conns"`
	MinConns         int    `yaml:"min_conns"`
}

// WriterConfig holds ingestion queue settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueSize     int           `yaml:"queue_size"`
}

// RedisConfig enables live price publishing when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// HealthConfig holds the health endpoint settings. Port 0 disables it.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Interval returns the sleep between poll cycles.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Poller.SleepSeconds) * time.Second
}

// TickerSet parses the configured ticker list.
func (c *Config) TickerSet() (model.TickerSet, error) {
	return model.ParseTickerSet(c.Tickers)
}
