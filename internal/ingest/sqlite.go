package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryEndpoint selects an in-memory sqlite database.
const MemoryEndpoint = ":memory:"

// SQLiteStore provisions and loads per-ticker tables in a local sqlite file.
// Times are stored as RFC 3339 text in UTC.
type SQLiteStore struct {
	db       *sql.DB
	database string
}

// OpenSQLite opens <dir>/<database>.db, creating dir if needed. A dir of
// MemoryEndpoint opens a private in-memory database.
func OpenSQLite(ctx context.Context, dir, database string) (*SQLiteStore, error) {
	path := MemoryEndpoint
	if dir != MemoryEndpoint {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		path = filepath.Join(dir, database+".db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	if path != MemoryEndpoint {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma wal: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, database: database}, nil
}

// EnsureTable creates table if it does not exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s TIMESTAMP NOT NULL,
		%s REAL NOT NULL
	);`, quoteIdent(table), quoteIdent(ColumnTime), quoteIdent(ColumnPrice))

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// Load inserts every row of recs in a single transaction.
func (s *SQLiteStore) Load(ctx context.Context, target Target, recs []Record) error {
	if target.Database != s.database {
		return fmt.Errorf("target database %q does not match open database %q", target.Database, s.database)
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := make(map[string]*sql.Stmt)
	for _, rec := range recs {
		key := strings.Join(rec.Columns, "\x00")
		stmt, ok := stmts[key]
		if !ok {
			stmt, err = tx.PrepareContext(ctx, insertSQL(target.Table, rec.Columns))
			if err != nil {
				return fmt.Errorf("prepare insert into %s: %w", target, err)
			}
			defer stmt.Close()
			stmts[key] = stmt
		}

		for _, row := range rec.Rows {
			args := make([]any, len(row))
			for i, v := range row {
				args[i] = sqliteValue(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert into %s: %w", target, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database. An in-memory database is discarded.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqliteValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}
