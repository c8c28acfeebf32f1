// Command mock-backend runs a deterministic legacy completions server for
// local runs and integration tests. Scoring requests are answered with
// log-probabilities derived from the token text, generation requests with
// a fixed script.
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_API_KEY    - Required bearer token (optional)
//	MOCK_FAIL_EVERY - Fail every n-th request with 503 (optional)
//	MOCK_TOKENIZER  - tokenizer.json used to split prompts (optional)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/lmscore/pkg/mockbackend"
	"github.com/rhuss/lmscore/pkg/tokenizer"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	opts := mockbackend.Options{APIKey: os.Getenv("MOCK_API_KEY")}
	if v := os.Getenv("MOCK_FAIL_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid MOCK_FAIL_EVERY", "value", v, "error", err)
			os.Exit(1)
		}
		opts.FailEvery = n
	}
	if path := os.Getenv("MOCK_TOKENIZER"); path != "" {
		tok, err := tokenizer.Load(path)
		if err != nil {
			slog.Error("loading tokenizer", "error", err)
			os.Exit(1)
		}
		opts.Tokenizer = tok
	}

	srv := &http.Server{Addr: ":" + port, Handler: mockbackend.NewHandler(opts)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "fail_every", opts.FailEvery)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
