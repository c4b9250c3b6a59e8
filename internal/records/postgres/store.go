// Package postgres stores ArchiveRecords in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/site-archiver/internal/records"
)

const defaultTable = "archive_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store implements records.Store on Postgres.
type Store struct {
	pool  pool
	table string
}

// New connects to Postgres and creates the table when missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("records.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	seed_url     TEXT NOT NULL,
	archive_path TEXT NOT NULL,
	sha256       TEXT NOT NULL,
	size_bytes   BIGINT NOT NULL,
	scraped      INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Append inserts rec.
func (s *Store) Append(ctx context.Context, rec records.ArchiveRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	project_name,
	seed_url,
	archive_path,
	sha256,
	size_bytes,
	scraped,
	failed,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)
	args := []any{
		rec.RunID,
		rec.ProjectName,
		rec.SeedURL,
		rec.ArchivePath,
		rec.SHA256,
		rec.SizeBytes,
		rec.Scraped,
		rec.Failed,
		rec.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert archive record: %w", err)
	}
	return nil
}

// List returns every record ordered by creation time.
func (s *Store) List(ctx context.Context) ([]records.ArchiveRecord, error) {
	query := fmt.Sprintf(`
SELECT run_id, project_name, seed_url, archive_path, sha256, size_bytes, scraped, failed, created_at
FROM %s
ORDER BY created_at, run_id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list archive records: %w", err)
	}
	defer rows.Close()

	var out []records.ArchiveRecord
	for rows.Next() {
		var rec records.ArchiveRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.ProjectName,
			&rec.SeedURL,
			&rec.ArchivePath,
			&rec.SHA256,
			&rec.SizeBytes,
			&rec.Scraped,
			&rec.Failed,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archive record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive records: %w", err)
	}
	return out, nil
}
