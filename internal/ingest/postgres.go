package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean the object is already there.
const (
	codeDuplicateTable  = "42P07"
	codeDuplicateSchema = "42P06"
	codeUniqueViolation = "23505" // concurrent CREATE ... IF NOT EXISTS on pg_type
)

// execer is the subset of *pgxpool.Pool used for provisioning.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// copier is the subset of *pgxpool.Pool used for loading.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresProvisioner creates per-ticker tables inside the tenant schema.
type PostgresProvisioner struct {
	db         execer
	schema     string
	hypertable bool
	logger     *slog.Logger

	mu          sync.Mutex
	schemaReady bool
}

// NewPostgresProvisioner creates a provisioner for tables in schema. When
// hypertable is set every table is converted to a TimescaleDB hypertable
// partitioned on Time.
func NewPostgresProvisioner(db execer, schema string, hypertable bool, logger *slog.Logger) *PostgresProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProvisioner{
		db:         db,
		schema:     schema,
		hypertable: hypertable,
		logger:     logger,
	}
}

// EnsureTable creates the schema (once) and table if they do not exist.
func (p *PostgresProvisioner) EnsureTable(ctx context.Context, table string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	ident := pgx.Identifier{p.schema, table}.Sanitize()
	if err := p.exec(ctx, createTableSQL(ident)); err != nil {
		return fmt.Errorf("create table %s: %w", ident, err)
	}

	if p.hypertable {
		if err := p.exec(ctx, createHypertableSQL(ident)); err != nil {
			return fmt.Errorf("create hypertable %s: %w", ident, err)
		}
	}

	p.logger.Debug("table provisioned", "table", ident, "hypertable", p.hypertable)
	return nil
}

func (p *PostgresProvisioner) ensureSchema(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schemaReady {
		return nil
	}

	ident := pgx.Identifier{p.schema}.Sanitize()
	if err := p.exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
		return fmt.Errorf("create schema %s: %w", ident, err)
	}
	p.schemaReady = true
	return nil
}

// exec runs a DDL statement, treating "already exists" as success.
func (p *PostgresProvisioner) exec(ctx context.Context, sql string) error {
	if _, err := p.db.Exec(ctx, sql); err != nil && !isAlreadyExists(err) {
		return err
	}
	return nil
}

func createTableSQL(ident string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"Time"  timestamptz      NOT NULL,
	"Price" double precision NOT NULL
)`, ident)
}

func createHypertableSQL(ident string) string {
	return fmt.Sprintf(`SELECT create_hypertable(%s, 'Time', if_not_exists => TRUE)`, quoteLiteral(ident))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeDuplicateTable, codeDuplicateSchema, codeUniqueViolation:
		return true
	}
	return false
}

// PostgresLoader bulk loads records with COPY.
type PostgresLoader struct {
	db       copier
	schema   string
	database string
}

// NewPostgresLoader creates a loader for tables in schema of database. The
// pool must be connected to database.
func NewPostgresLoader(db copier, schema, database string) *PostgresLoader {
	return &PostgresLoader{
		db:       db,
		schema:   schema,
		database: database,
	}
}

// Load copies every row of recs into the target table.
func (l *PostgresLoader) Load(ctx context.Context, target Target, recs []Record) error {
	if target.Database != l.database {
		return fmt.Errorf("target database %q does not match connected database %q", target.Database, l.database)
	}
	if len(recs) == 0 {
		return nil
	}

	columns := recs[0].Columns
	var rows [][]any
	for _, rec := range recs {
		if !slices.Equal(rec.Columns, columns) {
			return fmt.Errorf("record columns %v do not match %v", rec.Columns, columns)
		}
		rows = append(rows, rec.Rows...)
	}

	n, err := l.db.CopyFrom(ctx, pgx.Identifier{l.schema, target.Table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", target, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", target, n, len(rows))
	}
	return nil
}
