package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rickgao/ticker-feed/internal/config"
	"github.com/rickgao/ticker-feed/internal/database"
)

const (
	// DefaultSQLiteDir is used when the sqlite backend has no ingest endpoint.
	DefaultSQLiteDir = "data"

	kafkaDialTimeout = 10 * time.Second
)

// Backend bundles the provisioner and loader of one ingest backend with
// the resources they hold.
type Backend struct {
	Name        string
	Provisioner Provisioner
	Loader      Loader

	ping  func(context.Context) error
	close []func() error
}

// OpenBackend connects the backend selected by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.IngestConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendPostgres:
		pools, err := database.NewPools(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:        cfg.Backend,
			Provisioner: NewPostgresProvisioner(pools.Database, cfg.TenantID, cfg.Hypertable, logger),
			Loader:      NewPostgresLoader(pools.Ingest, cfg.TenantID, cfg.Database),
			ping:        pools.Ping,
			close:       []func() error{func() error { pools.Close(); return nil }},
		}, nil

	case config.BackendSQLite:
		dir := cfg.IngestEndpoint
		if dir == "" {
			dir = DefaultSQLiteDir
		}
		store, err := OpenSQLite(ctx, dir, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:        cfg.Backend,
			Provisioner: store,
			Loader:      store,
			ping:        store.Ping,
			close:       []func() error{store.Close},
		}, nil

	case config.BackendKafka:
		brokers := cfg.BrokerList()
		dialer := &RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: kafkaDialTimeout}}
		loader := NewKafkaLoader(NewKafkaWriter(brokers))
		return &Backend{
			Name:        cfg.Backend,
			Provisioner: NewKafkaProvisioner(dialer, brokers, cfg.Database, logger),
			Loader:      loader,
			close:       []func() error{loader.Close},
		}, nil

	default:
		return nil, fmt.Errorf("ingest backend %q is not supported", cfg.Backend)
	}
}

// Ping checks the backend's connections. Backends without a cheap
// liveness check always report healthy.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases every resource held by the backend.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.close {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
