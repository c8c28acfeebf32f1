package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rhuss/lmscore/pkg/cache"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	e := &cache.Entry{
		Hash:      "abc",
		Method:    "loglikelihood",
		RunID:     "run_1",
		Key:       []byte(`["ctx","cont"]`),
		Value:     []byte(`[-2.5,true]`),
		CreatedAt: now,
	}
	if err := store.Put(ctx, e); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Method != "loglikelihood" || got.RunID != "run_1" {
		t.Errorf("got method=%q run_id=%q", got.Method, got.RunID)
	}
	if string(got.Key) != `["ctx","cont"]` {
		t.Errorf("key = %s", got.Key)
	}
	if string(got.Value) != `[-2.5,true]` {
		t.Errorf("value = %s", got.Value)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{`1`, `2`} {
		err := store.Put(ctx, &cache.Entry{
			Hash: "h", Method: "greedy_until", Key: []byte(`"k"`), Value: []byte(v), CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("put %s: %v", v, err)
		}
	}

	got, err := store.Get(ctx, "h")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Value) != `2` {
		t.Errorf("value = %s, want 2", got.Value)
	}

	n, err := store.Count(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	hook := cache.NewHook("sqlite", store, "")
	if err := hook.AddPartial(ctx, "loglikelihood", []string{"a", "b"}, []any{-1.0, true}); err != nil {
		t.Fatalf("add partial: %v", err)
	}
	if err := hook.AddPartial(ctx, "greedy_until", []any{"q", []string{"\n"}}, "answer"); err != nil {
		t.Fatalf("add partial: %v", err)
	}
	store.Close()

	store, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	var text string
	if err := cache.NewHook("sqlite", store, "").Get(ctx, "greedy_until", []any{"q", []string{"\n"}}, &text); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q, want answer", text)
	}

	n, err := store.Count(ctx, "loglikelihood")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("loglikelihood count = %d, want 1", n)
	}
}
