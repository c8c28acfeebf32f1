package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/observability"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached answer.
type Entry struct {
	Hash      string
	Method    string
	RunID     string
	Key       json.RawMessage
	Value     json.RawMessage
	CreatedAt time.Time
}

// Store persists entries by hash. Put overwrites an existing entry with the
// same hash. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, e *Entry) error
	Get(ctx context.Context, hash string) (*Entry, error)
	Close() error
}

// Key returns the hash under which (method, key) is stored.
func Key(method string, key any) (string, error) {
	data, err := json.Marshal([]any{method, key})
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Hook writes partial results into a Store.
type Hook struct {
	name  string
	store Store
	runID string
}

// NewHook wraps store. name labels metrics and log lines; runID tags every
// entry written through the hook and may be empty.
func NewHook(name string, store Store, runID string) *Hook {
	return &Hook{name: name, store: store, runID: runID}
}

// AddPartial stores value under (method, key).
func (h *Hook) AddPartial(ctx context.Context, method string, key, value any) error {
	hash, err := Key(method, key)
	if err != nil {
		observability.CacheWritesTotal.WithLabelValues(h.name, "error").Inc()
		return err
	}
	keyJSON, err := json.Marshal(key)
	if err != nil {
		observability.CacheWritesTotal.WithLabelValues(h.name, "error").Inc()
		return fmt.Errorf("encoding cache key: %w", err)
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		observability.CacheWritesTotal.WithLabelValues(h.name, "error").Inc()
		return fmt.Errorf("encoding cache value: %w", err)
	}

	e := &Entry{
		Hash:      hash,
		Method:    method,
		RunID:     h.runID,
		Key:       keyJSON,
		Value:     valueJSON,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Put(ctx, e); err != nil {
		observability.CacheWritesTotal.WithLabelValues(h.name, "error").Inc()
		slog.Warn("partial cache write failed", "store", h.name, "method", method, "error", err)
		return fmt.Errorf("writing cache entry: %w", err)
	}

	observability.CacheWritesTotal.WithLabelValues(h.name, "ok").Inc()
	debug.Log("cache", "partial stored", "store", h.name, "method", method, "hash", hash[:12])
	return nil
}

// Get decodes the value stored under (method, key) into out.
func (h *Hook) Get(ctx context.Context, method string, key, out any) error {
	hash, err := Key(method, key)
	if err != nil {
		return err
	}
	e, err := h.store.Get(ctx, hash)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return fmt.Errorf("decoding cache value: %w", err)
	}
	return nil
}

// Lookup returns the raw entry for (method, key).
func (h *Hook) Lookup(ctx context.Context, method string, key any) (*Entry, error) {
	hash, err := Key(method, key)
	if err != nil {
		return nil, err
	}
	return h.store.Get(ctx, hash)
}

// Close closes the underlying store.
func (h *Hook) Close() error {
	return h.store.Close()
}
