package lm

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/observability"
	"github.com/rhuss/lmscore/pkg/provider"
)

type greedyItem struct {
	req    api.GreedyRequest
	tokens []int
}

// compareGreedy orders by context length in tokens, then context text, then
// stop sequences, so requests that differ only in their stop set are kept
// apart.
func compareGreedy(a, b greedyItem) int {
	if c := cmp.Compare(len(a.tokens), len(b.tokens)); c != 0 {
		return c
	}
	if c := strings.Compare(a.req.Context, b.req.Context); c != 0 {
		return c
	}
	return slices.Compare(a.req.Until, b.req.Until)
}

// GreedyUntil generates a greedy continuation for each context, stopping at
// MaxGenToks tokens or at any of the request's stop strings. The context is
// truncated from the left so that the prompt and the generation fit in
// MaxLength. Returned text is cut at the first occurrence of every stop
// string.
func (m *LM) GreedyUntil(ctx context.Context, reqs []api.GreedyRequest) ([]api.GreedyResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if apiErr := api.ValidateGreedy(reqs); apiErr != nil {
		return nil, apiErr
	}

	items := make([]greedyItem, len(reqs))
	for i, r := range reqs {
		toks, err := m.tok.Encode(r.Context)
		if err != nil {
			return nil, fmt.Errorf("request %d: encode context: %w", i, err)
		}
		items[i] = greedyItem{req: r, tokens: toks}
	}

	reord := NewReorderer(items, compareGreedy)
	results := make([]api.GreedyResult, 0, reord.Len())
	maxCtx := m.profile.MaxLength - m.profile.MaxGenToks

	for ci, chunk := range untilChunks(reord.Reordered(), m.batchSize()) {
		prompts := make([]provider.Prompt, len(chunk.items))
		for i, it := range chunk.items {
			inp := it.tokens[max(0, len(it.tokens)-maxCtx):]
			text, err := m.tok.Decode(inp)
			if err != nil {
				return nil, fmt.Errorf("decode prompt: %w", err)
			}
			prompts[i] = provider.TextPrompt(text)
		}

		resp, err := m.complete(ctx, &provider.CompletionRequest{
			Model:       m.engine,
			Prompts:     prompts,
			MaxTokens:   m.profile.MaxGenToks,
			Temperature: provider.Float(0),
			Stop:        chunk.until,
		})
		if err != nil {
			return nil, fmt.Errorf("generation batch %d: %w", ci, err)
		}

		for i, choice := range resp.Choices {
			it := chunk.items[i]
			s := truncateAtStops(choice.Text, it.req.Until)
			results = append(results, api.GreedyResult{Text: s})

			m.addPartial(ctx, MethodGreedyUntil, []any{it.req.Context, untilKey(it.req.Until)}, s)
		}

		observability.RequestsScoredTotal.WithLabelValues(MethodGreedyUntil).Add(float64(len(chunk.items)))
		debug.Log("lm", "generation batch done", "batch", ci, "prompts", len(chunk.items), "done", len(results), "total", reord.Len())
	}

	return RestoreOrder(reord, results)
}

// truncateAtStops cuts s before the first occurrence of each stop string,
// applied in order.
func truncateAtStops(s string, until []string) string {
	for _, term := range until {
		if before, _, found := strings.Cut(s, term); found {
			s = before
		}
	}
	return s
}

func untilKey(until []string) []string {
	if until == nil {
		return []string{}
	}
	return until
}
