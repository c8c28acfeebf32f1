package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LMSCORE_CONFIG env, ./lmscore.yaml, /etc/lmscore/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Overrides, typically command-line flags
//  6. Adapter API key variable, if no key is set yet
//  7. Validation
func Load(configPath string, overrides ...func(*Config)) (*Config, error) {
	return load(configPath, (*Config).Validate, overrides)
}

// LoadCache loads configuration like Load but validates only the cache
// section, for commands that inspect a cache without scoring.
func LoadCache(configPath string, overrides ...func(*Config)) (*Config, error) {
	return load(configPath, (*Config).ValidateCache, overrides)
}

func load(configPath string, validate func(*Config) error, overrides []func(*Config)) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if cfg.Provider.APIKey == "" {
		if p, err := cfg.Profile(); err == nil && p.APIKeyEnv != "" {
			cfg.Provider.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LMSCORE_CONFIG environment variable
// 3. ./lmscore.yaml in the current directory
// 4. /etc/lmscore/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("LMSCORE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"lmscore.yaml",
		"/etc/lmscore/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps LMSCORE_* environment variables to config fields.
// Malformed numeric or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	setString := map[string]*string{
		"LMSCORE_ADAPTER":        &cfg.Model.Adapter,
		"LMSCORE_ENGINE":         &cfg.Model.Engine,
		"LMSCORE_PROVIDER":       &cfg.Provider.Type,
		"LMSCORE_BASE_URL":       &cfg.Provider.BaseURL,
		"LMSCORE_API_KEY":        &cfg.Provider.APIKey,
		"LMSCORE_TOKENIZER_PATH": &cfg.Tokenizer.Path,
		"LMSCORE_TOKENIZER_DIR":  &cfg.Tokenizer.CacheDir,
		"LMSCORE_CACHE":          &cfg.Cache.Type,
		"LMSCORE_CACHE_PATH":     &cfg.Cache.SQLite.Path,
		"LMSCORE_CACHE_DSN":      &cfg.Cache.Postgres.DSN,
		"LMSCORE_METRICS_ADDR":   &cfg.Observability.Metrics.Addr,
		"LMSCORE_DEBUG":          &cfg.Debug.Categories,
		"LMSCORE_LOG_LEVEL":      &cfg.Debug.Level,
	}
	for name, field := range setString {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("LMSCORE_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LMSCORE_PARALLELISM: %w", err)
		}
		cfg.Provider.Parallelism = n
	}
	if v := os.Getenv("LMSCORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LMSCORE_TIMEOUT: %w", err)
		}
		cfg.Provider.Timeout = d
	}
	if v := os.Getenv("LMSCORE_RETRY_MAX_ELAPSED"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LMSCORE_RETRY_MAX_ELAPSED: %w", err)
		}
		cfg.Retry.MaxElapsedTime = d
	}
	if v := os.Getenv("LMSCORE_FORCE_PILE_TOKENIZER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LMSCORE_FORCE_PILE_TOKENIZER: %w", err)
		}
		cfg.Model.ForcePileTokenizer = b
	}
	if v := os.Getenv("LMSCORE_METRICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LMSCORE_METRICS: %w", err)
		}
		cfg.Observability.Metrics.Enabled = b
	}
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields when those are empty. File content is whitespace-trimmed.
func resolveFileReferences(cfg *Config) error {
	if cfg.Provider.APIKeyFile != "" && cfg.Provider.APIKey == "" {
		val, err := readSecretFile(cfg.Provider.APIKeyFile)
		if err != nil {
			return fmt.Errorf("provider.api_key_file: %w", err)
		}
		cfg.Provider.APIKey = val
	}

	if cfg.Cache.Postgres.DSNFile != "" && cfg.Cache.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Cache.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("cache.postgres.dsn_file: %w", err)
		}
		cfg.Cache.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
