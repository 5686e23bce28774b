package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Variables already set are not overridden and
// missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file and expands environment variables.
// An empty path builds the config from the environment alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// FromEnv builds a Config from environment variables. Values are taken
// verbatim; unset variables are left empty for applyDefaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Tickers: os.Getenv("TICKERS"),
		Source: SourceConfig{
			Provider: os.Getenv("PRICE_PROVIDER"),
			BaseURL:  os.Getenv("PRICE_API_URL"),
			APIKey:   os.Getenv("FINNHUB_API_KEY"),
		},
		Ingest: IngestConfig{
			Backend:          os.Getenv("INGEST_BACKEND"),
			TenantID:         os.Getenv("TENANT_ID"),
			Database:         os.Getenv("DATABASE_NAME"),
			DatabaseEndpoint: os.Getenv("DATABASE_ENDPOINT"),
			IngestEndpoint:   os.Getenv("INGEST_ENDPOINT"),
			Brokers:          os.Getenv("KAFKA_BROKERS"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Log: LogConfig{
			Level: os.Getenv("LOG_LEVEL"),
		},
	}

	if v := os.Getenv("HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("HEALTH_PORT: %q is not a port number", v)
		}
		cfg.Health.Port = port
	}

	return cfg, nil
}

// Parse expands ${VAR} references in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, applies flag overrides and
// validates the result for the given mode.
func LoadAndValidate(path string, flags *Flags, mode Mode) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if flags != nil {
		flags.Apply(cfg)
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
