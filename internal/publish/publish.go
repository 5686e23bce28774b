// Package publish pushes the latest price of each ticker to Redis so other
// processes can read it or subscribe to changes.
//
// For every observation the publisher runs a single pipeline:
//
//	SET stock:<ticker> <payload> EX <ttl>
//	PUBLISH prices.<ticker> <payload>
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/ticker-feed/internal/config"
	"github.com/rickgao/ticker-feed/internal/model"
)

// DefaultTTL is how long a published price stays readable.
const DefaultTTL = time.Hour

// Update is the JSON payload stored and published for an observation.
type Update struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
}

// RedisClient is the subset of *redis.Client used by the publisher.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Close() error
}

// Publisher writes observations to Redis.
type Publisher struct {
	rdb    RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Publisher. A non-positive ttl uses DefaultTTL.
func New(rdb RedisClient, ttl time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Publisher{rdb: rdb, ttl: ttl, logger: logger}
}

// Connect dials Redis from cfg and verifies the connection.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return New(rdb, cfg.TTL, logger), nil
}

// Key returns the Redis key holding the latest price of ticker.
func Key(ticker string) string {
	return "stock:" + ticker
}

// Channel returns the Pub/Sub channel for ticker.
func Channel(ticker string) string {
	return "prices." + ticker
}

// Publish stores obs as the latest price and announces it on the ticker's
// channel.
func (p *Publisher) Publish(ctx context.Context, obs model.Observation) error {
	payload, err := json.Marshal(Update{
		Symbol:    obs.Ticker,
		Price:     obs.Price,
		Timestamp: obs.Time.UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, Key(obs.Ticker), payload, p.ttl)
	pipe.Publish(ctx, Channel(obs.Ticker), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", obs.Ticker, err)
	}

	p.logger.Debug("published price", "ticker", obs.Ticker, "price", obs.Price)
	return nil
}

// HandleObservation implements poller.Handler.
func (p *Publisher) HandleObservation(ctx context.Context, obs model.Observation) error {
	return p.Publish(ctx, obs)
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
