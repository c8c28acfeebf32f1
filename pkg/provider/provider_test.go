package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rhuss/lmscore/pkg/api"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name      string
		caps      Capabilities
		req       *CompletionRequest
		wantParam string
	}{
		{
			name: "text prompt with minimal caps",
			caps: Capabilities{},
			req:  &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("hi")}},
		},
		{
			name:      "missing model",
			req:       &CompletionRequest{Prompts: []Prompt{TextPrompt("hi")}},
			wantParam: "model",
		},
		{
			name:      "no prompts",
			req:       &CompletionRequest{Model: "davinci"},
			wantParam: "prompt",
		},
		{
			name:      "token prompt without token support",
			caps:      Capabilities{},
			req:       &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("a"), TokenPrompt([]int{1, 2})}},
			wantParam: "prompt[1]",
		},
		{
			name: "token prompt with token support",
			caps: Capabilities{TokenPrompts: true},
			req:  &CompletionRequest{Model: "davinci", Prompts: []Prompt{TokenPrompt([]int{1, 2})}},
		},
		{
			name:      "echo without echo support",
			caps:      Capabilities{},
			req:       &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("a")}, Echo: true},
			wantParam: "echo",
		},
		{
			name:      "too many prompts",
			caps:      Capabilities{MaxPromptsPerRequest: 1},
			req:       &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("a"), TextPrompt("b")}},
			wantParam: "prompt",
		},
		{
			name:      "logprobs above limit",
			caps:      Capabilities{MaxLogprobs: 5},
			req:       &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("a")}, Logprobs: Int(10)},
			wantParam: "logprobs",
		},
		{
			name: "logprobs at limit",
			caps: Capabilities{MaxLogprobs: 10},
			req:  &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("a")}, Logprobs: Int(10)},
		},
		{
			name:      "negative max tokens",
			req:       &CompletionRequest{Model: "davinci", Prompts: []Prompt{TextPrompt("a")}, MaxTokens: -1},
			wantParam: "max_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.caps, tt.req)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error with param %q", tt.wantParam)
			}
			if err.Type != api.ErrorTypeInvalidRequest {
				t.Errorf("type = %q, want invalid_request", err.Type)
			}
			if err.Param != tt.wantParam {
				t.Errorf("param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestSortChoices(t *testing.T) {
	choices := []Choice{{Index: 2, Text: "c"}, {Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	SortChoices(choices)
	for i, c := range choices {
		if c.Index != i {
			t.Fatalf("choices[%d].Index = %d", i, c.Index)
		}
	}
}

func TestPromptIsTokens(t *testing.T) {
	if TextPrompt("x").IsTokens() {
		t.Error("text prompt reported as tokens")
	}
	if !TokenPrompt([]int{}).IsTokens() {
		t.Error("empty token prompt should still be a token prompt")
	}
}

func TestModelMapper(t *testing.T) {
	if ModelMapper(nil) != nil {
		t.Error("empty mapping should give a nil mapper")
	}
	m := ModelMapper(map[string]string{"neox": "gpt-neo-20b"})
	if got := m("neox"); got != "gpt-neo-20b" {
		t.Errorf("mapped = %q", got)
	}
	if got := m("davinci"); got != "davinci" {
		t.Errorf("unmapped = %q", got)
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{InitialInterval: time.Millisecond, Multiplier: 1.5, MaxInterval: 5 * time.Millisecond}
}

func TestRetryingEventuallySucceeds(t *testing.T) {
	want := &CompletionResponse{ID: "cmpl-ok"}
	mock := NewMockProvider(
		MockResponse{Err: api.NewServerError("boom")},
		MockResponse{Err: api.NewTooManyRequestsError("slow down")},
		MockResponse{Response: want},
	)

	r := NewRetrying(mock, fastRetry())
	resp, err := r.Complete(context.Background(), &CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != want {
		t.Errorf("got %+v, want %+v", resp, want)
	}
	if n := len(mock.Calls()); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestRetryingRetriesClientErrorsByDefault(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: api.NewInvalidRequestError("prompt", "bad")},
		MockResponse{Response: &CompletionResponse{}},
	)

	r := NewRetrying(mock, fastRetry())
	if _, err := r.Complete(context.Background(), &CompletionRequest{Model: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(mock.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestRetryingFailFast(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: api.NewAuthenticationError("bad key")})

	cfg := fastRetry()
	cfg.FailFastOnClientErrors = true
	r := NewRetrying(mock, cfg)

	_, err := r.Complete(context.Background(), &CompletionRequest{Model: "m"})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if n := len(mock.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestRetryingStopsOnContextCancel(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: errors.New("connection reset")})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	r := NewRetrying(mock, fastRetry())
	_, err := r.Complete(ctx, &CompletionRequest{Model: "m"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := len(mock.Calls()); n < 2 {
		t.Errorf("expected several attempts before cancellation, got %d", n)
	}
}

func TestRetryingMaxElapsedTime(t *testing.T) {
	boom := errors.New("boom")
	mock := NewMockProvider(MockResponse{Err: boom})

	cfg := fastRetry()
	cfg.MaxElapsedTime = 20 * time.Millisecond
	r := NewRetrying(mock, cfg)

	_, err := r.Complete(context.Background(), &CompletionRequest{Model: "m"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestDefaultRetrySchedule(t *testing.T) {
	b := DefaultRetryConfig().newBackOff()
	want := []time.Duration{3 * time.Second, 4500 * time.Millisecond, 6750 * time.Millisecond}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("interval %d = %v, want %v", i, got, w)
		}
	}
}

func TestFanOutPreservesOrder(t *testing.T) {
	var inflight, peak atomic.Int32
	mock := NewMockProvider()
	mock.Func = func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return &CompletionResponse{
			Model:   req.Model,
			Choices: []Choice{{Index: 0, Text: req.Prompts[0].Text}},
			Usage:   Usage{PromptTokens: 1, TotalTokens: 1},
		}, nil
	}

	prompts := []Prompt{TextPrompt("a"), TextPrompt("b"), TextPrompt("c"), TextPrompt("d"), TextPrompt("e")}
	f := NewFanOut(mock, 2)
	resp, err := f.Complete(context.Background(), &CompletionRequest{Model: "m", Prompts: prompts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Choices) != len(prompts) {
		t.Fatalf("choices = %d, want %d", len(resp.Choices), len(prompts))
	}
	for i, c := range resp.Choices {
		if c.Index != i || c.Text != prompts[i].Text {
			t.Errorf("choice %d = %+v", i, c)
		}
	}
	if resp.Usage.PromptTokens != len(prompts) {
		t.Errorf("prompt tokens = %d, want %d", resp.Usage.PromptTokens, len(prompts))
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if n := len(mock.Calls()); n != len(prompts) {
		t.Errorf("calls = %d, want %d", n, len(prompts))
	}
}

func TestFanOutPropagatesError(t *testing.T) {
	mock := NewMockProvider()
	mock.Func = func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
		if req.Prompts[0].Text == "bad" {
			return nil, api.NewModelError("refused")
		}
		return &CompletionResponse{Choices: []Choice{{}}}, nil
	}

	f := NewFanOut(mock, 4)
	_, err := f.Complete(context.Background(), &CompletionRequest{
		Model:   "m",
		Prompts: []Prompt{TextPrompt("ok"), TextPrompt("bad"), TextPrompt("ok")},
	})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeModelError {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestFanOutPassThrough(t *testing.T) {
	mock := NewMockProvider(MockResponse{Response: &CompletionResponse{ID: "x"}})
	mock.Caps.MaxPromptsPerRequest = 20

	f := NewFanOut(mock, 1)
	if f.Capabilities().MaxPromptsPerRequest != 20 {
		t.Error("parallelism 1 should keep the batch limit")
	}
	req := &CompletionRequest{Model: "m", Prompts: []Prompt{TextPrompt("a"), TextPrompt("b")}}
	if _, err := f.Complete(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	calls := mock.Calls()
	if len(calls) != 1 || len(calls[0].Prompts) != 2 {
		t.Errorf("expected a single batched call, got %+v", calls)
	}

	if NewFanOut(mock, 8).Capabilities().MaxPromptsPerRequest != 0 {
		t.Error("fan-out should lift the batch limit")
	}
}

func TestInstrumentedDelegates(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Response: &CompletionResponse{Usage: Usage{PromptTokens: 3, CompletionTokens: 1}}},
		MockResponse{Err: api.NewServerError("down")},
	)
	p := NewInstrumented(mock)

	if p.Name() != "mock" {
		t.Errorf("name = %q", p.Name())
	}
	if _, err := p.Complete(context.Background(), &CompletionRequest{Model: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Complete(context.Background(), &CompletionRequest{Model: "m"}); err == nil {
		t.Fatal("expected error on second call")
	}
	if err := p.Close(); err != nil || !mock.Closed() {
		t.Error("Close was not forwarded")
	}
}
