// Package mockbackend implements a deterministic legacy completions server.
// Log-probabilities depend only on the token text, so scoring the same
// continuation always yields the same result. It backs cmd/mock-backend and
// end-to-end tests of the scoring pipeline.
package mockbackend

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rhuss/lmscore/pkg/provider/openaicompat"
)

// AltToken is the competing alternative listed at every position.
const AltToken = "<|alt|>"

// EchoToken is the single token appended after an echoed prompt.
const EchoToken = " the"

// Script is the token sequence generated for non-echo requests.
var Script = []string{" the", " answer", " is", " 42", ".", "\n\n", "Question", ":", " why", "?"}

// Tokenizer splits prompts into tokens. When nil, text prompts are split
// into runes and token-id prompts are rendered as "<id>".
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Options configures the handler.
type Options struct {
	Tokenizer Tokenizer

	// APIKey, when set, is required as a bearer token.
	APIKey string

	// FailEvery makes every n-th request fail with 503.
	FailEvery int
}

type server struct {
	opts     Options
	requests atomic.Int64
}

// NewHandler returns an http.Handler serving /v1/completions and
// /v1/engines/{engine}/completions.
func NewHandler(opts Options) http.Handler {
	s := &server{opts: opts}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/completions", s.handleCompletions)
	mux.HandleFunc("POST /v1/engines/{engine}/completions", s.handleCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// LogProb returns the log-probability the server reports for tok.
func LogProb(tok string) float64 {
	return -0.1 - float64(hash(tok)%400)/100
}

// IsGreedy reports whether tok is the top-ranked alternative at its position.
func IsGreedy(tok string) bool {
	return hash(tok)%4 != 0
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (s *server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	n := s.requests.Add(1)

	if s.opts.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.APIKey {
		writeError(w, http.StatusUnauthorized, "authentication_error", "invalid api key")
		return
	}
	if s.opts.FailEvery > 0 && n%int64(s.opts.FailEvery) == 0 {
		writeError(w, http.StatusServiceUnavailable, "server_error", "injected failure")
		return
	}

	var req openaicompat.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	model := req.Model
	if engine := r.PathValue("engine"); engine != "" {
		model = engine
	}
	if model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}

	prompts, err := s.prompts(req.Prompt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	resp := openaicompat.CompletionResponse{
		ID:      fmt.Sprintf("cmpl-mock-%d", n),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Usage:   &openaicompat.CompletionUsage{},
	}
	for i, toks := range prompts {
		choice, generated := s.complete(toks, &req)
		choice.Index = i
		resp.Choices = append(resp.Choices, choice)
		resp.Usage.PromptTokens += len(toks)
		resp.Usage.CompletionTokens += generated
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	slog.Debug("completion served", "model", model, "prompts", len(prompts), "echo", req.Echo, "max_tokens", req.MaxTokens)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// complete builds the choice for one tokenized prompt and returns it with
// the number of generated tokens.
func (s *server) complete(prompt []string, req *openaicompat.CompletionRequest) (openaicompat.CompletionChoice, int) {
	var generated []string
	finish := "length"
	if req.MaxTokens > 0 {
		if req.Echo {
			generated = []string{EchoToken}
		} else {
			generated, finish = generate(req.MaxTokens, req.Stop)
		}
	}

	var all []string
	if req.Echo {
		all = append(all, prompt...)
	}
	all = append(all, generated...)

	choice := openaicompat.CompletionChoice{
		Text:         strings.Join(all, ""),
		FinishReason: finish,
	}
	if req.Logprobs != nil {
		choice.Logprobs = logprobs(all, req.Echo)
	}
	return choice, len(generated)
}

// generate emits Script tokens until maxTokens is reached or a stop string
// appears. The stop string itself is not returned.
func generate(maxTokens int, stop []string) ([]string, string) {
	var out []string
	var text strings.Builder
	for i := 0; i < maxTokens; i++ {
		tok := Script[i%len(Script)]
		text.WriteString(tok)
		for _, st := range stop {
			if st == "" {
				continue
			}
			if idx := strings.Index(text.String(), st); idx >= 0 {
				return trimTo(append(out, tok), idx), "stop"
			}
		}
		out = append(out, tok)
	}
	return out, "length"
}

// trimTo cuts toks so their concatenation is at most n bytes long.
func trimTo(toks []string, n int) []string {
	var out []string
	for _, t := range toks {
		if n <= 0 {
			break
		}
		if len(t) > n {
			t = t[:n]
		}
		out = append(out, t)
		n -= len(t)
	}
	return out
}

func logprobs(toks []string, echo bool) *openaicompat.CompletionLogprobs {
	lp := &openaicompat.CompletionLogprobs{
		Tokens:        toks,
		TokenLogprobs: make([]*float64, len(toks)),
		TopLogprobs:   make([]map[string]float64, len(toks)),
		TextOffset:    make([]int, len(toks)),
	}
	offset := 0
	for i, tok := range toks {
		lp.TextOffset[i] = offset
		offset += len(tok)
		if echo && i == 0 {
			continue
		}
		v := LogProb(tok)
		alt := v - 1
		if !IsGreedy(tok) {
			alt = v + 0.5
		}
		lp.TokenLogprobs[i] = &v
		lp.TopLogprobs[i] = map[string]float64{tok: v, AltToken: alt}
	}
	return lp
}

// prompts normalizes the prompt field into token strings per prompt.
func (s *server) prompts(raw any) ([][]string, error) {
	switch p := raw.(type) {
	case string:
		toks, err := s.splitText(p)
		if err != nil {
			return nil, err
		}
		return [][]string{toks}, nil
	case []any:
		if len(p) == 0 {
			return nil, fmt.Errorf("prompt is empty")
		}
		if _, ok := p[0].(float64); ok {
			toks, err := s.splitIDs(p)
			if err != nil {
				return nil, err
			}
			return [][]string{toks}, nil
		}
		out := make([][]string, 0, len(p))
		for i, item := range p {
			var (
				toks []string
				err  error
			)
			switch v := item.(type) {
			case string:
				toks, err = s.splitText(v)
			case []any:
				toks, err = s.splitIDs(v)
			default:
				err = fmt.Errorf("prompt[%d] has unsupported type %T", i, item)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, toks)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("prompt has unsupported type %T", raw)
	}
}

func (s *server) splitText(text string) ([]string, error) {
	if s.opts.Tokenizer == nil {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out, nil
	}
	ids, err := s.opts.Tokenizer.Encode(text)
	if err != nil {
		return nil, err
	}
	return s.decodeEach(ids)
}

func (s *server) splitIDs(raw []any) ([]string, error) {
	ids := make([]int, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("token id %v is not a number", v)
		}
		ids[i] = int(f)
	}
	if s.opts.Tokenizer == nil {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = fmt.Sprintf("<%d>", id)
		}
		return out, nil
	}
	return s.decodeEach(ids)
}

func (s *server) decodeEach(ids []int) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		tok, err := s.opts.Tokenizer.Decode([]int{id})
		if err != nil {
			return nil, err
		}
		out[i] = tok
	}
	return out, nil
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(openaicompat.ErrorResponse{
		Error: openaicompat.ErrorDetail{Message: msg, Type: typ},
	})
}
