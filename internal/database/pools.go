package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/ticker-feed/internal/config"
)

// Pools holds database connections for an ingester.
type Pools struct {
	// Database runs provisioning statements.
	Database *pgxpool.Pool

	// Ingest loads rows. May be the same pool as Database.
	Ingest *pgxpool.Pool
}

// NewPools creates connection pools for both endpoints.
func NewPools(ctx context.Context, cfg config.IngestConfig) (*Pools, error) {
	dbConn, err := BuildConnString(cfg.DatabaseEndpoint, cfg.Database, cfg.SSLMode)
	if err != nil {
		return nil, fmt.Errorf("database endpoint: %w", err)
	}
	ingestConn, err := BuildConnString(cfg.IngestEndpoint, cfg.Database, cfg.SSLMode)
	if err != nil {
		return nil, fmt.Errorf("ingest endpoint: %w", err)
	}

	db, err := Connect(ctx, dbConn, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database endpoint: %w", err)
	}

	if ingestConn == dbConn {
		return &Pools{Database: db, Ingest: db}, nil
	}

	ingest, err := Connect(ctx, ingestConn, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ingest endpoint: %w", err)
	}

	return &Pools{
		Database: db,
		Ingest:   ingest,
	}, nil
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, connStr string, cfg config.IngestConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "ticker-feed/" + cfg.TenantID

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Close closes both connection pools.
func (p *Pools) Close() {
	if p.Ingest != nil && p.Ingest != p.Database {
		p.Ingest.Close()
	}
	if p.Database != nil {
		p.Database.Close()
	}
}

// Ping verifies both connections are healthy.
func (p *Pools) Ping(ctx context.Context) error {
	if err := p.Database.Ping(ctx); err != nil {
		return fmt.Errorf("ping database endpoint: %w", err)
	}
	if p.Ingest != p.Database {
		if err := p.Ingest.Ping(ctx); err != nil {
			return fmt.Errorf("ping ingest endpoint: %w", err)
		}
	}
	return nil
}
