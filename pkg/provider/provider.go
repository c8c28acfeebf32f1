package provider

import "context"

// Provider abstracts a hosted completion backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "gooseai").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Complete performs one completion request. The response holds one
	// choice per prompt, ordered by prompt index.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// ModelMapper returns a function translating requested model names through
// mapping. Names not in the map pass through unchanged. It returns nil for
// an empty mapping.
func ModelMapper(mapping map[string]string) func(string) string {
	if len(mapping) == 0 {
		return nil
	}
	return func(model string) string {
		if mapped, ok := mapping[model]; ok {
			return mapped
		}
		return model
	}
}
