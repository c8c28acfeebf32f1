package main

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rhuss/lmscore/pkg/cache"
	"github.com/rhuss/lmscore/pkg/config"
	"github.com/rhuss/lmscore/pkg/lm"
)

var (
	cacheMethod string
	cacheKey    string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the partial-result cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the cached answer for a request",
	Long: `Print the entry stored for a method and key. The key is the JSON
cache key of the request: ["context", "continuation"] for loglikelihood,
["context", ["stop", ...]] for greedy_until, and ["text"] for
loglikelihood_rolling.`,
	Example: `  lmscore cache get --cache sqlite --method loglikelihood --key '["Q: 2+2=", " 4"]'`,
	Args:    cobra.NoArgs,
	RunE:    runCacheGet,
}

func init() {
	cacheGetCmd.Flags().StringVarP(&cacheMethod, "method", "m", lm.MethodLoglikelihood, "request method")
	cacheGetCmd.Flags().StringVarP(&cacheKey, "key", "k", "", "JSON-encoded cache key")
	_ = cacheGetCmd.MarkFlagRequired("key")
	cacheCmd.AddCommand(cacheGetCmd)
}

// cacheEntryView is the printed form of a cache entry.
type cacheEntryView struct {
	Hash      string          `json:"hash"`
	Method    string          `json:"method"`
	RunID     string          `json:"run_id,omitempty"`
	Key       json.RawMessage `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

func runCacheGet(cmd *cobra.Command, _ []string) error {
	switch cacheMethod {
	case lm.MethodLoglikelihood, lm.MethodLoglikelihoodRolling, lm.MethodGreedyUntil:
	default:
		return exitError(ExitInvalidArgs, "unknown method %q", cacheMethod)
	}

	var key any
	if err := json.Unmarshal([]byte(cacheKey), &key); err != nil {
		return exitError(ExitInvalidArgs, "--key is not valid JSON: %v", err)
	}

	cfg, err := loadWith(cmd, config.LoadCache)
	if err != nil {
		return err
	}
	if cfg.Cache.Type == "none" || cfg.Cache.Type == "memory" {
		return exitError(ExitInvalidArgs, "cache type %q is not persistent, nothing to inspect", cfg.Cache.Type)
	}

	hook, err := openCache(cmd.Context(), cfg, "")
	if err != nil {
		return err
	}
	defer hook.Close()

	e, err := hook.Lookup(cmd.Context(), cacheMethod, key)
	if errors.Is(err, cache.ErrNotFound) {
		return exitError(ExitFailure, "no entry for %s %s", cacheMethod, cacheKey)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(cacheEntryView{
		Hash:      e.Hash,
		Method:    e.Method,
		RunID:     e.RunID,
		Key:       e.Key,
		Value:     e.Value,
		CreatedAt: e.CreatedAt,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
