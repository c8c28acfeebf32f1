// Package config provides unified configuration for lmscore.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (LMSCORE_ prefix, plus the
//     OPENAI_API_SECRET_KEY / GOOSEAI_API_SECRET_KEY key variables)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/lmscore/pkg/lm"
)

// Config holds all configuration for an lmscore run.
type Config struct {
	Model         ModelConfig         `yaml:"model"`
	Provider      ProviderConfig      `yaml:"provider"`
	Retry         RetryConfig         `yaml:"retry"`
	Tokenizer     TokenizerConfig     `yaml:"tokenizer"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ModelConfig selects the model adapter and engine.
type ModelConfig struct {
	Adapter            string `yaml:"adapter"`              // "gpt3" or "gooseai", default: "gpt3"
	Engine             string `yaml:"engine"`               // required, e.g. "davinci" or "gpt-neo-20b"
	ForcePileTokenizer bool   `yaml:"force_pile_tokenizer"` // gooseai only
	ChunkSize          int    `yaml:"chunk_size"`           // prompts per request, default: 20
	VerifyTokenizer    bool   `yaml:"verify_tokenizer"`     // run the adapter's tokenizer self-check
}

// ProviderConfig holds completion API settings.
type ProviderConfig struct {
	Type        string        `yaml:"type"`         // "openai", "openaicompat" or "gooseai"; derived from model.adapter when empty
	BaseURL     string        `yaml:"base_url"`     // optional, provider default otherwise
	APIKey      string        `yaml:"api_key"`      // falls back to the adapter's key variable
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
	Timeout     time.Duration `yaml:"timeout"`      // per request, default: 10m
	Parallelism int           `yaml:"parallelism"`  // concurrent single-prompt requests, default: 1

	// ModelMapping rewrites engine names before they are sent, e.g.
	// {"neox": "gpt-neo-20b"}. Unmapped engines pass through.
	ModelMapping map[string]string `yaml:"model_mapping"`
}

// RetryConfig controls the backoff schedule of failed completion calls.
type RetryConfig struct {
	InitialInterval        time.Duration `yaml:"initial_interval"`           // default: 3s
	Multiplier             float64       `yaml:"multiplier"`                 // default: 1.5
	MaxInterval            time.Duration `yaml:"max_interval"`               // 0 = uncapped
	MaxElapsedTime         time.Duration `yaml:"max_elapsed_time"`           // 0 = retry forever
	RandomizationFactor    float64       `yaml:"randomization_factor"`       // default: 0
	FailFastOnClientErrors bool          `yaml:"fail_fast_on_client_errors"` // default: false
}

// TokenizerConfig locates the BPE tokenizer file.
type TokenizerConfig struct {
	Path     string `yaml:"path"`      // local tokenizer.json; skips download when set
	URL      string `yaml:"url"`       // overrides the adapter's tokenizer URL
	Checksum string `yaml:"checksum"`  // SHA-256 of the downloaded file
	CacheDir string `yaml:"cache_dir"` // download directory, default: user cache dir
}

// CacheConfig holds partial-result cache settings.
type CacheConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory", "sqlite" or "postgres", default: "none"
	MaxSize  int            `yaml:"max_size"` // for memory cache, default: 100000
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite cache settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "lmscore-cache.db"
}

// PostgresConfig holds PostgreSQL cache settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 4
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: ":9090"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig configures pkg/debug.
type DebugConfig struct {
	Categories string `yaml:"categories"` // comma-separated, e.g. "providers,lm"
	Level      string `yaml:"level"`      // default: "INFO"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Model: ModelConfig{
			Adapter:   "gpt3",
			ChunkSize: 20,
		},
		Provider: ProviderConfig{
			Timeout:     10 * time.Minute,
			Parallelism: 1,
		},
		Retry: RetryConfig{
			InitialInterval: 3 * time.Second,
			Multiplier:      1.5,
		},
		Cache: CacheConfig{
			Type:    "none",
			MaxSize: 100000,
			SQLite: SQLiteConfig{
				Path: "lmscore-cache.db",
			},
			Postgres: PostgresConfig{
				MaxConns:       4,
				MigrateOnStart: true,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Addr: ":9090",
				Path: "/metrics",
			},
		},
		Debug: DebugConfig{
			Level: "INFO",
		},
	}
}

// Profile returns the model adapter profile named by model.adapter.
func (c *Config) Profile() (lm.Profile, error) {
	return lm.LookupProfile(c.Model.Adapter, c.Model.Engine, c.Model.ForcePileTokenizer)
}

// ProviderType returns provider.type, or the transport the model adapter
// talks to when it is empty.
func (c *Config) ProviderType() string {
	if c.Provider.Type != "" {
		return c.Provider.Type
	}
	if p, err := c.Profile(); err == nil {
		return p.Provider
	}
	return "openai"
}
