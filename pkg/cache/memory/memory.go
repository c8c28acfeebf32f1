// Package memory provides an in-memory cache.Store for tests and short runs.
// Entries are lost when the process exits. Optional LRU eviction bounds
// memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/rhuss/lmscore/pkg/cache"
)

type entry struct {
	e       *cache.Entry
	lruElem *list.Element
}

// Store is an in-memory cache.Store with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
}

var _ cache.Store = (*Store)(nil)

// New creates a store. If maxSize is 0 the store grows without limit,
// otherwise the least recently used entry is evicted at capacity.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Put stores e, replacing any entry with the same hash.
func (s *Store) Put(_ context.Context, e *cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[e.Hash]; ok {
		existing.e = e
		s.lruList.MoveToFront(existing.lruElem)
		return nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(e.Hash)
	s.entries[e.Hash] = &entry{e: e, lruElem: elem}
	return nil
}

// Get returns the entry for hash and marks it as recently used.
func (s *Store) Get(_ context.Context, hash string) (*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[hash]
	if !ok {
		return nil, cache.ErrNotFound
	}
	s.lruList.MoveToFront(ent.lruElem)
	return ent.e, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used entry. Caller holds mu.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	hash := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, hash)
}
