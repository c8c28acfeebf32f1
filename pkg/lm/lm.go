package lm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/observability"
	"github.com/rhuss/lmscore/pkg/provider"
)

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
	EOTTokenID() int
}

// CacheHook receives each answer as soon as its batch completes.
type CacheHook interface {
	AddPartial(ctx context.Context, method string, key, value any) error
}

// Cache methods under which partial results are stored.
const (
	MethodLoglikelihood        = "loglikelihood"
	MethodLoglikelihoodRolling = "loglikelihood_rolling"
	MethodGreedyUntil          = "greedy_until"
)

// scoringLogprobs is the number of alternatives requested per position.
const scoringLogprobs = 10

// Options configures an LM.
type Options struct {
	// Engine is the model name sent to the provider.
	Engine string

	Profile   Profile
	Provider  provider.Provider
	Tokenizer Tokenizer

	// Cache is optional.
	Cache CacheHook

	// ChunkSize is the number of prompts per request. Defaults to 20.
	ChunkSize int

	// VerifyTokenizer runs the profile's tokenizer check in New.
	VerifyTokenizer bool
}

// LM answers evaluation requests through a completion provider.
type LM struct {
	engine    string
	profile   Profile
	provider  provider.Provider
	tok       Tokenizer
	cache     CacheHook
	chunkSize int
}

// New creates an LM.
func New(opts Options) (*LM, error) {
	if opts.Engine == "" {
		return nil, fmt.Errorf("lm: engine is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("lm: provider is required")
	}
	if opts.Tokenizer == nil {
		return nil, fmt.Errorf("lm: tokenizer is required")
	}
	if opts.Profile.MaxLength <= opts.Profile.MaxGenToks || opts.Profile.MaxGenToks <= 0 {
		return nil, fmt.Errorf("lm: profile %q needs 0 < max_gen_toks < max_length", opts.Profile.Name)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	if check := opts.Profile.TokenizerCheck; opts.VerifyTokenizer && check != nil {
		got, err := opts.Tokenizer.Encode(check.Text)
		if err != nil {
			return nil, fmt.Errorf("lm: tokenizer check: %w", err)
		}
		if !slices.Equal(got, check.IDs) {
			return nil, fmt.Errorf("lm: tokenizer check failed: %q encoded as %v, want %v", check.Text, got, check.IDs)
		}
	}

	debug.Log("lm", "model adapter ready", "profile", opts.Profile.Name, "engine", opts.Engine,
		"provider", opts.Provider.Name(), "max_length", opts.Profile.MaxLength)

	return &LM{
		engine:    opts.Engine,
		profile:   opts.Profile,
		provider:  opts.Provider,
		tok:       opts.Tokenizer,
		cache:     opts.Cache,
		chunkSize: opts.ChunkSize,
	}, nil
}

// Engine returns the model name sent to the provider.
func (m *LM) Engine() string { return m.engine }

// MaxLength returns the longest token sequence the model accepts.
func (m *LM) MaxLength() int { return m.profile.MaxLength }

// MaxGenToks returns the number of tokens generated per request.
func (m *LM) MaxGenToks() int { return m.profile.MaxGenToks }

// EOTTokenID returns the end-of-text token id.
func (m *LM) EOTTokenID() int { return m.tok.EOTTokenID() }

// TokEncode encodes text without special tokens.
func (m *LM) TokEncode(text string) ([]int, error) { return m.tok.Encode(text) }

// TokDecode decodes token ids to text.
func (m *LM) TokDecode(ids []int) (string, error) { return m.tok.Decode(ids) }

// Close closes the provider.
func (m *LM) Close() error { return m.provider.Close() }

// batchSize returns the chunk size, bounded by the provider's batch limit.
func (m *LM) batchSize() int {
	size := m.chunkSize
	if limit := m.provider.Capabilities().MaxPromptsPerRequest; limit > 0 && limit < size {
		size = limit
	}
	return size
}

// passStrings reports whether prompts must go out as text.
func (m *LM) passStrings() bool {
	return m.profile.PassStrings || !m.provider.Capabilities().TokenPrompts
}

func (m *LM) complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if apiErr := provider.ValidateRequest(m.provider.Capabilities(), req); apiErr != nil {
		return nil, apiErr
	}

	resp, err := m.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) != len(req.Prompts) {
		return nil, fmt.Errorf("%w: %d choices for %d prompts", ErrShortResponse, len(resp.Choices), len(req.Prompts))
	}
	return resp, nil
}

func (m *LM) addPartial(ctx context.Context, method string, key, value any) {
	if m.cache == nil || key == nil {
		return
	}
	if err := m.cache.AddPartial(ctx, method, key, value); err != nil {
		slog.Warn("partial cache write failed", "method", method, "error", err)
	}
}

// LoglikelihoodTokens scores token-level requests. Requests are sorted
// longest first, identical token sequences are sent once, and each input is
// truncated from the left to the last MaxLength+1 tokens.
func (m *LM) LoglikelihoodTokens(ctx context.Context, reqs []api.TokenRequest) ([]api.LoglikelihoodResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if apiErr := api.ValidateTokenRequests(reqs); apiErr != nil {
		return nil, apiErr
	}

	reord := NewReorderer(reqs, compareTokenRequests)
	results := make([]api.LoglikelihoodResult, 0, reord.Len())
	passStrings := m.passStrings()

	for ci, chunk := range Chunks(reord.Reordered(), m.batchSize()) {
		prompts := make([]provider.Prompt, len(chunk))
		ctxlens := make([]int, len(chunk))

		for i, r := range chunk {
			inp, ctxlen := truncateInput(r, m.profile.MaxLength)
			ctxlens[i] = ctxlen
			if passStrings {
				text, err := m.tok.Decode(inp)
				if err != nil {
					return nil, fmt.Errorf("decode prompt: %w", err)
				}
				prompts[i] = provider.TextPrompt(text)
			} else {
				prompts[i] = provider.TokenPrompt(inp)
			}
		}

		resp, err := m.complete(ctx, &provider.CompletionRequest{
			Model:     m.engine,
			Prompts:   prompts,
			Echo:      true,
			MaxTokens: 1,
			Logprobs:  provider.Int(scoringLogprobs),
		})
		if err != nil {
			return nil, fmt.Errorf("loglikelihood batch %d: %w", ci, err)
		}

		for i, choice := range resp.Choices {
			answer, err := ExtractResult(choice.Logprobs, ctxlens[i])
			if err != nil {
				return nil, fmt.Errorf("loglikelihood batch %d, prompt %d: %w", ci, i, err)
			}
			results = append(results, answer)

			for _, member := range reord.Members(len(results) - 1) {
				m.addPartial(ctx, MethodLoglikelihood, member.CacheKey, answer)
			}
		}

		observability.RequestsScoredTotal.WithLabelValues(MethodLoglikelihood).Add(float64(len(chunk)))
		debug.Log("lm", "loglikelihood batch done", "batch", ci, "prompts", len(chunk), "done", len(results), "total", reord.Len())
	}

	return RestoreOrder(reord, results)
}

// truncateInput keeps the last maxLength+1 tokens of context+continuation
// and returns them with the number of context tokens that remain.
func truncateInput(r api.TokenRequest, maxLength int) ([]int, int) {
	toks := r.Tokens()
	overflow := max(0, len(toks)-(maxLength+1))
	return toks[overflow:], len(r.Context) - overflow
}

// compareTokenRequests orders longer requests first, then by tokens.
func compareTokenRequests(a, b api.TokenRequest) int {
	at, bt := a.Tokens(), b.Tokens()
	if len(at) != len(bt) {
		return len(bt) - len(at)
	}
	return slices.Compare(at, bt)
}

// Loglikelihood scores (context, continuation) string pairs. An empty
// context is replaced by the end-of-text token.
func (m *LM) Loglikelihood(ctx context.Context, reqs []api.LoglikelihoodRequest) ([]api.LoglikelihoodResult, error) {
	if apiErr := api.ValidateLoglikelihood(reqs); apiErr != nil {
		return nil, apiErr
	}

	tokReqs := make([]api.TokenRequest, len(reqs))
	for i, r := range reqs {
		var contextEnc []int
		if r.Context == "" {
			contextEnc = []int{m.tok.EOTTokenID()}
		} else {
			enc, err := m.tok.Encode(r.Context)
			if err != nil {
				return nil, fmt.Errorf("request %d: encode context: %w", i, err)
			}
			contextEnc = enc
		}

		contEnc, err := m.tok.Encode(r.Continuation)
		if err != nil {
			return nil, fmt.Errorf("request %d: encode continuation: %w", i, err)
		}

		tokReqs[i] = api.TokenRequest{
			CacheKey:     []string{r.Context, r.Continuation},
			Context:      contextEnc,
			Continuation: contEnc,
		}
	}

	return m.LoglikelihoodTokens(ctx, tokReqs)
}

// LoglikelihoodRolling returns the total log-likelihood of each text,
// scored in disjoint windows of MaxLength tokens. The first window is
// conditioned on the end-of-text token.
func (m *LM) LoglikelihoodRolling(ctx context.Context, reqs []api.RollingRequest) ([]api.RollingResult, error) {
	out := make([]api.RollingResult, len(reqs))
	for i, r := range reqs {
		toks, err := m.tok.Encode(r.Text)
		if err != nil {
			return nil, fmt.Errorf("request %d: encode: %w", i, err)
		}

		windows := rollingWindows(toks, m.tok.EOTTokenID(), m.profile.MaxLength, 1)
		tokReqs := make([]api.TokenRequest, len(windows))
		for j, w := range windows {
			d := w.disjoint()
			tokReqs[j] = api.TokenRequest{Context: d.context, Continuation: d.continuation}
		}

		results, err := m.LoglikelihoodTokens(ctx, tokReqs)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}

		var sum float64
		for _, res := range results {
			sum += res.LogProb
		}
		out[i] = api.RollingResult{LogProb: sum}

		m.addPartial(ctx, MethodLoglikelihoodRolling, []string{r.Text}, out[i])
		debug.Log("lm", "rolling loglikelihood done", "request", i, "tokens", len(toks), "windows", len(windows))
	}
	return out, nil
}
