package config

import (
	"errors"
	"fmt"

	"github.com/rhuss/lmscore/pkg/lm"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	profile, err := c.Profile()
	if err != nil {
		errs = append(errs, fmt.Errorf("model.adapter: %w", err))
	}
	if c.Model.Engine == "" {
		errs = append(errs, fmt.Errorf("model.engine is required"))
	}
	if c.Model.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("model.chunk_size must be >= 0, got %d", c.Model.ChunkSize))
	}

	switch t := c.ProviderType(); t {
	case "openai", "gooseai":
		if c.Provider.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider.api_key is required for provider %q (set %s)", t, keyHint(profile, t)))
		}
	case "openaicompat":
		if c.Provider.BaseURL == "" {
			errs = append(errs, fmt.Errorf("provider.base_url is required for provider \"openaicompat\""))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.type must be \"openai\", \"openaicompat\" or \"gooseai\", got %q", t))
	}
	if c.Provider.Timeout < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must be >= 0, got %v", c.Provider.Timeout))
	}
	if c.Provider.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("provider.parallelism must be >= 0, got %d", c.Provider.Parallelism))
	}

	if c.Retry.InitialInterval <= 0 {
		errs = append(errs, fmt.Errorf("retry.initial_interval must be > 0, got %v", c.Retry.InitialInterval))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier))
	}
	if c.Retry.RandomizationFactor < 0 || c.Retry.RandomizationFactor >= 1 {
		errs = append(errs, fmt.Errorf("retry.randomization_factor must be in [0, 1), got %v", c.Retry.RandomizationFactor))
	}
	if c.Retry.MaxElapsedTime < 0 {
		errs = append(errs, fmt.Errorf("retry.max_elapsed_time must be >= 0, got %v", c.Retry.MaxElapsedTime))
	}

	if c.Tokenizer.URL != "" && c.Tokenizer.Checksum == "" {
		errs = append(errs, fmt.Errorf("tokenizer.checksum is required when tokenizer.url is set"))
	}

	if err := c.ValidateCache(); err != nil {
		errs = append(errs, err)
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// keyHint names the variable to set for a missing API key.
func keyHint(profile lm.Profile, providerType string) string {
	if profile.APIKeyEnv != "" && profile.Provider == providerType {
		return profile.APIKeyEnv
	}
	if providerType == "gooseai" {
		return lm.GooseAI("", false).APIKeyEnv
	}
	return lm.GPT3().APIKeyEnv
}

// ValidateCache checks the cache section only.
func (c *Config) ValidateCache() error {
	var errs []error

	switch c.Cache.Type {
	case "none", "memory":
	case "sqlite":
		if c.Cache.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("cache.sqlite.path is required when cache.type is \"sqlite\""))
		}
	case "postgres":
		if c.Cache.Postgres.DSN == "" && c.Cache.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("cache.postgres.dsn or cache.postgres.dsn_file is required when cache.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.type must be \"none\", \"memory\", \"sqlite\" or \"postgres\", got %q", c.Cache.Type))
	}
	if c.Cache.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("cache.max_size must be >= 0, got %d", c.Cache.MaxSize))
	}

	return errors.Join(errs...)
}
