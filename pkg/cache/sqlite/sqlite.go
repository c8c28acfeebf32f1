// Package sqlite provides a cache.Store backed by a local SQLite file, using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhuss/lmscore/pkg/cache"
)

const schema = `
CREATE TABLE IF NOT EXISTS partial_cache (
	hash       TEXT PRIMARY KEY,
	method     TEXT NOT NULL,
	run_id     TEXT NOT NULL DEFAULT '',
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_partial_cache_method ON partial_cache(method);
`

// Store is a SQLite-backed cache.Store.
type Store struct {
	db *sql.DB
}

var _ cache.Store = (*Store)(nil)

// New opens (or creates) the database at path and ensures the schema exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put inserts or replaces the entry.
func (s *Store) Put(ctx context.Context, e *cache.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partial_cache (hash, method, run_id, key, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			method = excluded.method,
			run_id = excluded.run_id,
			key = excluded.key,
			value = excluded.value,
			created_at = excluded.created_at
	`, e.Hash, e.Method, e.RunID, string(e.Key), string(e.Value), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Get returns the entry for hash.
func (s *Store) Get(ctx context.Context, hash string) (*cache.Entry, error) {
	var (
		e         cache.Entry
		key, val  string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, method, run_id, key, value, created_at
		FROM partial_cache WHERE hash = ?
	`, hash).Scan(&e.Hash, &e.Method, &e.RunID, &key, &val, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	e.Key = []byte(key)
	e.Value = []byte(val)
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	return &e, nil
}

// Count returns the number of entries stored under method, or all entries
// when method is empty.
func (s *Store) Count(ctx context.Context, method string) (int, error) {
	var n int
	var err error
	if method == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM partial_cache").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM partial_cache WHERE method = ?", method).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
