package provider

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/debug"
)

// FanOut splits a batched request into one request per prompt and runs them
// concurrently against the wrapped provider. Choices come back in prompt
// order with Index set to the prompt position.
type FanOut struct {
	next        Provider
	parallelism int
}

var _ Provider = (*FanOut)(nil)

// NewFanOut wraps next. At most parallelism sub-requests are in flight at
// once; a parallelism of 1 or less passes requests through unchanged.
func NewFanOut(next Provider, parallelism int) *FanOut {
	return &FanOut{next: next, parallelism: parallelism}
}

func (f *FanOut) Name() string { return f.next.Name() }

// Capabilities reports the wrapped provider's capabilities without a batch
// limit, since every prompt goes out on its own.
func (f *FanOut) Capabilities() Capabilities {
	caps := f.next.Capabilities()
	if f.parallelism > 1 {
		caps.MaxPromptsPerRequest = 0
	}
	return caps
}

func (f *FanOut) Close() error { return f.next.Close() }

// Complete dispatches the prompts of req concurrently. The first failure
// cancels the remaining sub-requests and is returned.
func (f *FanOut) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if f.parallelism <= 1 || len(req.Prompts) <= 1 {
		return f.next.Complete(ctx, req)
	}

	debug.Log("providers", "fanning out completion", "prompts", len(req.Prompts), "parallelism", f.parallelism)

	choices := make([]Choice, len(req.Prompts))
	usages := make([]Usage, len(req.Prompts))
	models := make([]string, len(req.Prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)

	for i, p := range req.Prompts {
		g.Go(func() error {
			sub := *req
			sub.Prompts = []Prompt{p}

			resp, err := f.next.Complete(gctx, &sub)
			if err != nil {
				return fmt.Errorf("prompt %d: %w", i, err)
			}
			if len(resp.Choices) == 0 {
				return api.NewServerError(fmt.Sprintf("prompt %d: provider returned no choices", i))
			}

			c := resp.Choices[0]
			c.Index = i
			choices[i] = c
			usages[i] = resp.Usage
			models[i] = resp.Model
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &CompletionResponse{
		Model:   models[0],
		Choices: choices,
	}
	for _, u := range usages {
		out.Usage.PromptTokens += u.PromptTokens
		out.Usage.CompletionTokens += u.CompletionTokens
		out.Usage.TotalTokens += u.TotalTokens
	}
	return out, nil
}
