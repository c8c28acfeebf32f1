// Package postgres provides a PostgreSQL cache.Store. It uses pgx/v5 for
// connection pooling and JSONB columns for keys and values, so a shared
// database can hold partial results from many runs.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/lmscore/pkg/cache"
)

// Store is a PostgreSQL-backed cache.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ cache.Store = (*Store)(nil)

// New connects to the database. If MigrateOnStart is set, pending schema
// migrations are applied.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// Put upserts the entry.
func (s *Store) Put(ctx context.Context, e *cache.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO partial_cache (hash, method, run_id, key, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			method = EXCLUDED.method,
			run_id = EXCLUDED.run_id,
			key = EXCLUDED.key,
			value = EXCLUDED.value,
			created_at = EXCLUDED.created_at
	`, e.Hash, e.Method, e.RunID, string(e.Key), string(e.Value), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting entry: %w", err)
	}
	return nil
}

// Get returns the entry for hash.
func (s *Store) Get(ctx context.Context, hash string) (*cache.Entry, error) {
	var (
		e        cache.Entry
		key, val string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT hash, method, run_id, key::text, value::text, created_at
		FROM partial_cache WHERE hash = $1
	`, hash).Scan(&e.Hash, &e.Method, &e.RunID, &key, &val, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	e.Key = []byte(key)
	e.Value = []byte(val)
	return &e, nil
}

// CountByRun returns the number of entries tagged with runID.
func (s *Store) CountByRun(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM partial_cache WHERE run_id = $1", runID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
