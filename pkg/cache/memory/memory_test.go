package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rhuss/lmscore/pkg/cache"
)

func makeEntry(hash, value string) *cache.Entry {
	return &cache.Entry{
		Hash:   hash,
		Method: "loglikelihood",
		Key:    []byte(`["a","b"]`),
		Value:  []byte(value),
	}
}

func TestPutAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.Put(ctx, makeEntry("h1", `[-1.5,true]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "h1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Value) != `[-1.5,true]` {
		t.Errorf("Value = %s, want [-1.5,true]", got.Value)
	}
}

func TestGetMissing(t *testing.T) {
	s := New(0)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.Put(ctx, makeEntry("h1", `1`))
	s.Put(ctx, makeEntry("h1", `2`))

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, _ := s.Get(ctx, "h1")
	if string(got.Value) != `2` {
		t.Errorf("Value = %s, want 2", got.Value)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	s.Put(ctx, makeEntry("h1", `1`))
	s.Put(ctx, makeEntry("h2", `2`))

	// Touch h1 so h2 becomes the eviction candidate.
	if _, err := s.Get(ctx, "h1"); err != nil {
		t.Fatalf("Get h1: %v", err)
	}
	s.Put(ctx, makeEntry("h3", `3`))

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, err := s.Get(ctx, "h2"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("h2 should have been evicted, got err = %v", err)
	}
	for _, h := range []string{"h1", "h3"} {
		if _, err := s.Get(ctx, h); err != nil {
			t.Errorf("Get %s: %v", h, err)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 20 {
				h := fmt.Sprintf("h%d_%d", n, j)
				s.Put(ctx, makeEntry(h, `0`))
				s.Get(ctx, h)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() > 50 {
		t.Errorf("Len = %d, exceeds max size 50", s.Len())
	}
}

func TestHookRoundTrip(t *testing.T) {
	s := New(0)
	h := cache.NewHook("memory", s, "run_test")
	ctx := context.Background()

	key := []string{"The quick", " brown fox"}
	if err := h.AddPartial(ctx, "loglikelihood", key, []any{-3.25, false}); err != nil {
		t.Fatalf("AddPartial failed: %v", err)
	}

	var got []any
	if err := h.Get(ctx, "loglikelihood", key, &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 2 || got[0] != -3.25 || got[1] != false {
		t.Errorf("got %v, want [-3.25 false]", got)
	}

	e, err := h.Lookup(ctx, "loglikelihood", key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if e.RunID != "run_test" {
		t.Errorf("RunID = %q, want run_test", e.RunID)
	}
	if e.Method != "loglikelihood" {
		t.Errorf("Method = %q, want loglikelihood", e.Method)
	}

	// Same key under another method is a different entry.
	if err := h.Get(ctx, "greedy_until", key, &got); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
