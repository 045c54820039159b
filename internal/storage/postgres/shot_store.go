// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tweetshot/internal/capture"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ShotStoreConfig controls the Postgres connection pool used for shot rows.
type ShotStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ShotStore writes capture records into Postgres.
type ShotStore struct {
	pool  execCloser
	table string
}

// NewShotStore creates a Postgres-backed ShotStore using the provided config.
func NewShotStore(ctx context.Context, cfg ShotStoreConfig) (*ShotStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "captures"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ShotStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewShotStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewShotStoreWithPool(pool execCloser, table string) (*ShotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "captures"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ShotStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ShotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreShot inserts a capture row into Postgres.
func (s *ShotStore) StoreShot(ctx context.Context, shot capture.ShotRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("shot store is not configured")
	}
	if shot.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_uuid,
	tweet_url,
	final_url,
	object_name,
	blob_uri,
	file_url,
	content_hash,
	size_bytes,
	width,
	height,
	captured_at,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, s.table)

	args := []any{
		shot.JobID,
		shot.URL,
		shot.FinalURL,
		shot.ObjectName,
		shot.BlobURI,
		shot.FileURL,
		shot.ContentHash,
		shot.SizeBytes,
		shot.Width,
		shot.Height,
		shot.CapturedAt,
		shot.DurationMs,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	return nil
}
