package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/lm"
)

var (
	inputPath  string
	outputPath string
)

var loglikelihoodCmd = &cobra.Command{
	Use:   "loglikelihood",
	Short: "Score continuations given contexts",
	Long: `Read {"context": ..., "continuation": ...} lines and write
{"logprob": ..., "is_greedy": ...} lines in the same order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScoring(cmd, api.ValidateLoglikelihood, (*lm.LM).Loglikelihood)
	},
}

var rollingCmd = &cobra.Command{
	Use:   "rolling",
	Short: "Score whole texts with rolling windows",
	Long: `Read {"text": ...} lines and write {"logprob": ...} lines in the
same order. Texts longer than the model's context are scored in disjoint
windows whose log-probabilities are summed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScoring(cmd, nil, (*lm.LM).LoglikelihoodRolling)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate greedily until a stop string",
	Long: `Read {"context": ..., "until": [...]} lines and write {"text": ...}
lines in the same order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScoring(cmd, api.ValidateGreedy, (*lm.LM).GreedyUntil)
	},
}

func init() {
	for _, c := range []*cobra.Command{loglikelihoodCmd, rollingCmd, generateCmd} {
		c.Flags().StringVarP(&inputPath, "input", "i", "-", "JSONL request file (- for stdin)")
		c.Flags().StringVarP(&outputPath, "output", "o", "-", "JSONL result file (- for stdout)")
	}
}

// runScoring reads requests, answers them with score and writes results.
func runScoring[Req, Res any](
	cmd *cobra.Command,
	validate func([]Req) *api.APIError,
	score func(*lm.LM, context.Context, []Req) ([]Res, error),
) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	in, err := openInput(cmd, inputPath)
	if err != nil {
		return err
	}
	reqs, err := readJSONL[Req](in)
	in.Close()
	if err != nil {
		return exitError(ExitInvalidArgs, "%v", err)
	}
	if validate != nil {
		if err := validate(reqs); err != nil {
			return exitError(ExitInvalidArgs, "invalid request: %v", err)
		}
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	start := time.Now()
	results, err := score(rt.model, ctx, reqs)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	slog.Info("scoring run finished", "run_id", rt.runID, "command", cmd.Name(),
		"requests", len(reqs), "elapsed", time.Since(start).Round(time.Millisecond))

	out, err := openOutput(cmd, outputPath)
	if err != nil {
		return err
	}
	if err := writeJSONL(out, results); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
