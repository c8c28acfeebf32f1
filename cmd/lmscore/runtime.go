package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/cache"
	"github.com/rhuss/lmscore/pkg/cache/memory"
	"github.com/rhuss/lmscore/pkg/cache/postgres"
	"github.com/rhuss/lmscore/pkg/cache/sqlite"
	"github.com/rhuss/lmscore/pkg/config"
	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/lm"
	"github.com/rhuss/lmscore/pkg/observability"
	"github.com/rhuss/lmscore/pkg/provider"
	"github.com/rhuss/lmscore/pkg/provider/gooseai"
	"github.com/rhuss/lmscore/pkg/provider/openai"
	"github.com/rhuss/lmscore/pkg/provider/openaicompat"
	"github.com/rhuss/lmscore/pkg/tokenizer"
)

// runtime holds everything a scoring command needs for one run.
type runtime struct {
	runID   string
	model   *lm.LM
	cache   *cache.Hook
	metrics *observability.Server
}

// newRuntime wires provider, tokenizer, cache and metrics from cfg.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	debug.Init(debug.Options{Categories: cfg.Debug.Categories, Level: cfg.Debug.Level})

	rt := &runtime{runID: api.NewRunID()}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}

	tok, err := loadTokenizer(ctx, cfg, profile)
	if err != nil {
		return nil, err
	}

	prov, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	if rt.cache, err = openCache(ctx, cfg, rt.runID); err != nil {
		prov.Close()
		return nil, err
	}

	opts := lm.Options{
		Engine:          cfg.Model.Engine,
		Profile:         profile,
		Provider:        prov,
		Tokenizer:       tok,
		ChunkSize:       cfg.Model.ChunkSize,
		VerifyTokenizer: cfg.Model.VerifyTokenizer,
	}
	if rt.cache != nil {
		opts.Cache = rt.cache
	}
	if rt.model, err = lm.New(opts); err != nil {
		rt.close()
		prov.Close()
		return nil, err
	}

	if m := cfg.Observability.Metrics; m.Enabled {
		if rt.metrics, err = observability.Listen(m.Addr, m.Path); err != nil {
			rt.close()
			return nil, fmt.Errorf("starting metrics endpoint: %w", err)
		}
	}

	slog.Info("scoring run started", "run_id", rt.runID, "adapter", profile.Name,
		"engine", cfg.Model.Engine, "provider", prov.Name(), "cache", cfg.Cache.Type)
	return rt, nil
}

func (rt *runtime) close() {
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rt.metrics.Shutdown(ctx)
		cancel()
	}
	if rt.model != nil {
		if err := rt.model.Close(); err != nil {
			slog.Warn("closing provider", "error", err)
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
}

// buildProvider creates the transport for cfg and layers metrics, retries
// and fan-out on top. Each fan-out request runs its own retry loop, and
// every attempt is counted.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	var (
		base provider.Provider
		err  error
	)
	switch t := cfg.ProviderType(); t {
	case "openai":
		base, err = openai.New(openai.Config{
			BaseURL:      cfg.Provider.BaseURL,
			APIKey:       cfg.Provider.APIKey,
			Timeout:      cfg.Provider.Timeout,
			ModelMapping: cfg.Provider.ModelMapping,
		})
	case "gooseai":
		base, err = gooseai.New(gooseai.Config{
			BaseURL:      cfg.Provider.BaseURL,
			APIKey:       cfg.Provider.APIKey,
			Timeout:      cfg.Provider.Timeout,
			ModelMapping: cfg.Provider.ModelMapping,
		})
	case "openaicompat":
		base, err = openaicompat.New(openaicompat.Config{
			BaseURL:      cfg.Provider.BaseURL,
			APIKey:       cfg.Provider.APIKey,
			Timeout:      cfg.Provider.Timeout,
			ModelMapping: cfg.Provider.ModelMapping,
		})
	default:
		return nil, fmt.Errorf("unknown provider type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	p := provider.Provider(provider.NewInstrumented(base))
	p = provider.NewRetrying(p, provider.RetryConfig{
		InitialInterval:        cfg.Retry.InitialInterval,
		Multiplier:             cfg.Retry.Multiplier,
		MaxInterval:            cfg.Retry.MaxInterval,
		MaxElapsedTime:         cfg.Retry.MaxElapsedTime,
		RandomizationFactor:    cfg.Retry.RandomizationFactor,
		FailFastOnClientErrors: cfg.Retry.FailFastOnClientErrors,
	})
	if cfg.Provider.Parallelism > 1 {
		p = provider.NewFanOut(p, cfg.Provider.Parallelism)
	}
	return p, nil
}

// loadTokenizer loads tokenizer.path, or downloads the adapter's tokenizer
// into the cache directory once and loads it from there.
func loadTokenizer(ctx context.Context, cfg *config.Config, profile lm.Profile) (*tokenizer.Tokenizer, error) {
	if cfg.Tokenizer.Path != "" {
		return tokenizer.Load(cfg.Tokenizer.Path)
	}

	url, checksum := profile.TokenizerURL, profile.TokenizerSHA256
	if cfg.Tokenizer.URL != "" {
		url, checksum = cfg.Tokenizer.URL, cfg.Tokenizer.Checksum
	}
	dir := cfg.Tokenizer.CacheDir
	if dir == "" {
		dir = tokenizer.DefaultCacheDir()
	}
	dest := filepath.Join(dir, tokenizerFileName(url))

	client := &http.Client{Timeout: 5 * time.Minute}
	if err := tokenizer.Fetch(ctx, client, url, dest, checksum); err != nil {
		return nil, fmt.Errorf("fetching tokenizer: %w", err)
	}
	return tokenizer.Load(dest)
}

// tokenizerFileName keeps downloads from different URLs apart even when
// they share a base name.
func tokenizerFileName(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:6]) + "-" + path.Base(url)
}

// openCache returns nil when caching is disabled.
func openCache(ctx context.Context, cfg *config.Config, runID string) (*cache.Hook, error) {
	var (
		store cache.Store
		err   error
	)
	switch cfg.Cache.Type {
	case "", "none":
		return nil, nil
	case "memory":
		store = memory.New(cfg.Cache.MaxSize)
	case "sqlite":
		store, err = sqlite.New(cfg.Cache.SQLite.Path)
	case "postgres":
		store, err = postgres.New(ctx, postgres.Config{
			DSN:            cfg.Cache.Postgres.DSN,
			MaxConns:       cfg.Cache.Postgres.MaxConns,
			MigrateOnStart: cfg.Cache.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Type, err)
	}
	return cache.NewHook(cfg.Cache.Type, store, runID), nil
}
