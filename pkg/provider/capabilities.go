package provider

import (
	"fmt"

	"github.com/rhuss/lmscore/pkg/api"
)

// Capabilities declares what the backend accepts. Used for early request
// validation before anything goes on the wire.
type Capabilities struct {
	// TokenPrompts indicates the backend accepts token-id prompts.
	TokenPrompts bool

	// Echo indicates the backend can echo prompt tokens with log-probabilities.
	Echo bool

	// MaxLogprobs is the largest accepted logprobs value (0 = unknown/unlimited).
	MaxLogprobs int

	// MaxPromptsPerRequest limits the batch size (0 = unlimited).
	MaxPromptsPerRequest int
}

// ValidateRequest checks whether req is compatible with the provider's
// declared capabilities. Returns an APIError identifying the specific
// unsupported feature, or nil if the request is compatible.
func ValidateRequest(caps Capabilities, req *CompletionRequest) *api.APIError {
	if req.Model == "" {
		return api.NewInvalidRequestError("model", "engine is required")
	}

	if len(req.Prompts) == 0 {
		return api.NewInvalidRequestError("prompt", "at least one prompt is required")
	}

	if caps.MaxPromptsPerRequest > 0 && len(req.Prompts) > caps.MaxPromptsPerRequest {
		return api.NewInvalidRequestError("prompt",
			fmt.Sprintf("batch of %d prompts exceeds the provider limit of %d", len(req.Prompts), caps.MaxPromptsPerRequest))
	}

	if !caps.TokenPrompts {
		for i, p := range req.Prompts {
			if p.IsTokens() {
				return api.NewInvalidRequestError(fmt.Sprintf("prompt[%d]", i),
					"the configured provider does not accept token prompts")
			}
		}
	}

	if req.Echo && !caps.Echo {
		return api.NewInvalidRequestError("echo",
			"the configured provider does not support echoing prompt tokens")
	}

	if req.MaxTokens < 0 {
		return api.NewInvalidRequestError("max_tokens", "max_tokens must not be negative")
	}

	if req.Logprobs != nil && caps.MaxLogprobs > 0 && *req.Logprobs > caps.MaxLogprobs {
		return api.NewInvalidRequestError("logprobs",
			fmt.Sprintf("logprobs %d exceeds the provider limit of %d", *req.Logprobs, caps.MaxLogprobs))
	}

	return nil
}
