package openaicompat

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuss/lmscore/pkg/provider"
)

// Config holds configuration for a generic OpenAI-compatible backend.
type Config struct {
	// BaseURL is the backend URL (e.g., "http://localhost:8000"). A trailing
	// "/v1" is accepted and stripped.
	BaseURL string

	// APIKey for bearer authentication (optional).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// EngineRoutes selects the engine-scoped endpoint layout.
	EngineRoutes bool

	// TextPromptsOnly declares that the backend cannot take token-id prompts.
	TextPromptsOnly bool

	// ModelMapping maps requested model names to backend model names.
	ModelMapping map[string]string
}

// Provider implements provider.Provider for any backend speaking the legacy
// completions protocol.
type Provider struct {
	cfg    Config
	client *Client
	caps   provider.Capabilities
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Provider with the given configuration.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: BaseURL is required")
	}

	client := NewClient("openaicompat", cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.EngineRoutes = cfg.EngineRoutes
	client.ModelMapper = provider.ModelMapper(cfg.ModelMapping)

	return &Provider{
		cfg:    cfg,
		client: client,
		caps: provider.Capabilities{
			TokenPrompts: !cfg.TextPromptsOnly,
			Echo:         true,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openaicompat"
}

// Capabilities returns what this provider supports.
func (p *Provider) Capabilities() provider.Capabilities {
	return p.caps
}

// Complete performs one completions request.
func (p *Provider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	return p.client.Complete(ctx, req)
}

// Close releases provider resources.
func (p *Provider) Close() error {
	return p.client.Close()
}
