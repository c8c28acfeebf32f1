package gooseai

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuss/lmscore/pkg/provider"
	"github.com/rhuss/lmscore/pkg/provider/openaicompat"
)

// GooseAIProvider implements provider.Provider for GooseAI.
type GooseAIProvider struct {
	cfg    Config
	client *openaicompat.Client
	caps   provider.Capabilities
}

var _ provider.Provider = (*GooseAIProvider)(nil)

// New creates a new GooseAIProvider with the given configuration.
func New(cfg Config) (*GooseAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gooseai: APIKey is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := openaicompat.NewClient("gooseai", cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.EngineRoutes = true

	client.ModelMapper = provider.ModelMapper(cfg.ModelMapping)

	return &GooseAIProvider{
		cfg:    cfg,
		client: client,
		caps: provider.Capabilities{
			TokenPrompts: false,
			Echo:         true,
			MaxLogprobs:  10,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *GooseAIProvider) Name() string {
	return "gooseai"
}

// Capabilities returns what this provider supports.
func (p *GooseAIProvider) Capabilities() provider.Capabilities {
	return p.caps
}

// Complete performs one completions request against the engine route.
func (p *GooseAIProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if apiErr := provider.ValidateRequest(p.caps, req); apiErr != nil {
		return nil, apiErr
	}
	return p.client.Complete(ctx, req)
}

// Close releases provider resources.
func (p *GooseAIProvider) Close() error {
	return p.client.Close()
}
