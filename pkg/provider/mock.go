package provider

import (
	"context"
	"sync"
)

// MockResponse defines a canned reply for the mock provider.
type MockResponse struct {
	Response *CompletionResponse
	Err      error
}

// MockProvider is a test double. When Func is set it computes every reply;
// otherwise it returns the configured responses in sequence and keeps
// returning the last one once exhausted. Every request is recorded.
type MockProvider struct {
	// Func, when non-nil, produces the reply for each request.
	Func func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Caps is returned by Capabilities.
	Caps Capabilities

	mu        sync.Mutex
	responses []MockResponse
	calls     []CompletionRequest
	idx       int
	closed    bool
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock that returns the given responses in order.
// It accepts token prompts and echo by default.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{
		responses: responses,
		Caps:      Capabilities{TokenPrompts: true, Echo: true, MaxLogprobs: 10},
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Capabilities() Capabilities { return m.Caps }

// Complete records the request and returns the next reply.
func (m *MockProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, *req)
	fn := m.Func
	if fn != nil {
		m.mu.Unlock()
		return fn(ctx, req)
	}
	defer m.mu.Unlock()

	if len(m.responses) == 0 {
		return &CompletionResponse{Model: req.Model}, nil
	}

	r := m.responses[m.idx]
	if m.idx < len(m.responses)-1 {
		m.idx++
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Response, nil
}

// Close marks the mock closed.
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns a copy of all requests received by this mock.
func (m *MockProvider) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
