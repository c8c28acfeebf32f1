package openaicompat

import (
	"fmt"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/provider"
)

// TranslateRequest converts a provider request into the wire format. A batch
// must be homogeneous: either every prompt is text or every prompt is token
// ids.
func TranslateRequest(req *provider.CompletionRequest) (*CompletionRequest, error) {
	out := &CompletionRequest{
		Model:       req.Model,
		Echo:        req.Echo,
		MaxTokens:   req.MaxTokens,
		Logprobs:    req.Logprobs,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}

	if len(req.Prompts) == 0 {
		return nil, api.NewInvalidRequestError("prompt", "at least one prompt is required")
	}

	if req.Prompts[0].IsTokens() {
		prompts := make([][]int, len(req.Prompts))
		for i, p := range req.Prompts {
			if !p.IsTokens() {
				return nil, api.NewInvalidRequestError(fmt.Sprintf("prompt[%d]", i), "cannot mix text and token prompts in one request")
			}
			prompts[i] = p.Tokens
		}
		out.Prompt = prompts
		return out, nil
	}

	prompts := make([]string, len(req.Prompts))
	for i, p := range req.Prompts {
		if p.IsTokens() {
			return nil, api.NewInvalidRequestError(fmt.Sprintf("prompt[%d]", i), "cannot mix text and token prompts in one request")
		}
		prompts[i] = p.Text
	}
	out.Prompt = prompts
	return out, nil
}

// TranslateResponse converts a wire response into a provider response with
// choices ordered by index.
func TranslateResponse(resp *CompletionResponse) *provider.CompletionResponse {
	out := &provider.CompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]provider.Choice, len(resp.Choices)),
	}

	for i, c := range resp.Choices {
		choice := provider.Choice{
			Index:        c.Index,
			Text:         c.Text,
			FinishReason: c.FinishReason,
		}
		if c.Logprobs != nil {
			choice.Logprobs = &provider.Logprobs{
				Tokens:        c.Logprobs.Tokens,
				TokenLogprobs: c.Logprobs.TokenLogprobs,
				TopLogprobs:   c.Logprobs.TopLogprobs,
				TextOffset:    c.Logprobs.TextOffset,
			}
		}
		out.Choices[i] = choice
	}
	provider.SortChoices(out.Choices)

	if resp.Usage != nil {
		out.Usage = provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return out
}
