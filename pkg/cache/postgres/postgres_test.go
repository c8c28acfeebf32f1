package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/lmscore/pkg/cache"
)

func init() {
	// Point testcontainers at the podman socket when DOCKER_HOST is unset.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			if sock := strings.TrimSpace(string(out)); sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a migrated Store.
// Tests are skipped when no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	_, dockerErr := exec.LookPath("docker")
	_, podmanErr := exec.LookPath("podman")
	if dockerErr != nil && podmanErr != nil {
		t.Skip("no container runtime found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("lmscore_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestPostgres_PutAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &cache.Entry{
		Hash:      fmt.Sprintf("hash_%d", time.Now().UnixNano()),
		Method:    "loglikelihood",
		RunID:     "run_pg",
		Key:       []byte(`["ctx", "cont"]`),
		Value:     []byte(`[-2.5, true]`),
		CreatedAt: now,
	}
	if err := store.Put(ctx, e); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, e.Hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Method != "loglikelihood" {
		t.Errorf("Method = %q, want loglikelihood", got.Method)
	}
	if got.RunID != "run_pg" {
		t.Errorf("RunID = %q, want run_pg", got.RunID)
	}
	if string(got.Value) != `[-2.5, true]` {
		t.Errorf("Value = %s", got.Value)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestPostgres_GetMissing(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.Get(context.Background(), "does_not_exist")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgres_HookUpsert(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	hook := cache.NewHook("postgres", store, "run_upsert")

	key := []any{"Question:", []string{"\n\n"}}
	if err := hook.AddPartial(ctx, "greedy_until", key, "first"); err != nil {
		t.Fatalf("AddPartial failed: %v", err)
	}
	if err := hook.AddPartial(ctx, "greedy_until", key, "second"); err != nil {
		t.Fatalf("AddPartial failed: %v", err)
	}

	var text string
	if err := hook.Get(ctx, "greedy_until", key, &text); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if text != "second" {
		t.Errorf("text = %q, want second", text)
	}

	n, err := store.CountByRun(ctx, "run_upsert")
	if err != nil {
		t.Fatalf("CountByRun failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestPostgres_ConcurrentWrites(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	hook := cache.NewHook("postgres", store, "run_concurrent")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := []string{fmt.Sprintf("ctx %d", n), " cont"}
			if err := hook.AddPartial(ctx, "loglikelihood", key, []any{float64(-n), n%2 == 0}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddPartial failed: %v", err)
	}

	n, err := store.CountByRun(ctx, "run_concurrent")
	if err != nil {
		t.Fatalf("CountByRun failed: %v", err)
	}
	if n != 20 {
		t.Errorf("count = %d, want 20", n)
	}
}

func TestPostgres_MigrateIdempotent(t *testing.T) {
	store := setupTestDB(t)
	if err := store.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}
