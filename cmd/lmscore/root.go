package main

import (
	"github.com/spf13/cobra"

	"github.com/rhuss/lmscore/pkg/config"
)

// Global flag values. Flags left unset do not override the config file or
// environment.
var (
	configPath      string
	flagAdapter     string
	flagEngine      string
	flagProvider    string
	flagBaseURL     string
	flagCache       string
	flagParallelism int
	flagLogLevel    string
	flagDebug       string
)

// rootCmd is the base command for lmscore.
var rootCmd = &cobra.Command{
	Use:   "lmscore",
	Short: "Score language-model evaluation requests against a completion API",
	Long: `lmscore answers evaluation requests (log-likelihood of a continuation,
rolling log-likelihood of a text, greedy generation until a stop string)
by calling an OpenAI-compatible completions endpoint. Requests are batched,
retried with exponential backoff, and optionally written to a partial-result
cache as each batch completes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default: $LMSCORE_CONFIG, ./lmscore.yaml, /etc/lmscore/config.yaml)")
	pf.StringVar(&flagAdapter, "adapter", "", "model adapter: gpt3 or gooseai")
	pf.StringVarP(&flagEngine, "engine", "e", "", "engine (model) name")
	pf.StringVar(&flagProvider, "provider", "", "provider type: openai, openaicompat or gooseai")
	pf.StringVar(&flagBaseURL, "base-url", "", "completion API base URL")
	pf.StringVar(&flagCache, "cache", "", "partial cache: none, memory, sqlite or postgres")
	pf.IntVar(&flagParallelism, "parallelism", 0, "concurrent single-prompt requests")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: TRACE, DEBUG, INFO, WARN, ERROR")
	pf.StringVar(&flagDebug, "debug", "", "debug categories, e.g. providers,lm,cache")

	rootCmd.AddCommand(loglikelihoodCmd)
	rootCmd.AddCommand(rollingCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the layered configuration with explicitly set flags
// applied last.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return loadWith(cmd, config.Load)
}

func loadWith(cmd *cobra.Command, load func(string, ...func(*config.Config)) (*config.Config, error)) (*config.Config, error) {
	flags := cmd.Flags()
	cfg, err := load(configPath, func(c *config.Config) {
		if flags.Changed("adapter") {
			c.Model.Adapter = flagAdapter
		}
		if flags.Changed("engine") {
			c.Model.Engine = flagEngine
		}
		if flags.Changed("provider") {
			c.Provider.Type = flagProvider
		}
		if flags.Changed("base-url") {
			c.Provider.BaseURL = flagBaseURL
		}
		if flags.Changed("cache") {
			c.Cache.Type = flagCache
		}
		if flags.Changed("parallelism") {
			c.Provider.Parallelism = flagParallelism
		}
		if flags.Changed("log-level") {
			c.Debug.Level = flagLogLevel
		}
		if flags.Changed("debug") {
			c.Debug.Categories = flagDebug
		}
	})
	if err != nil {
		return nil, exitError(ExitInvalidArgs, "%v", err)
	}
	return cfg, nil
}
