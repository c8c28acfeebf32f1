package provider

import "sort"

// Prompt is either plain text or a sequence of token ids. Exactly one of
// Text and Tokens is meaningful; Tokens wins when non-nil.
type Prompt struct {
	Text   string `json:"text,omitempty"`
	Tokens []int  `json:"tokens,omitempty"`
}

// TextPrompt returns a text prompt.
func TextPrompt(s string) Prompt {
	return Prompt{Text: s}
}

// TokenPrompt returns a token-id prompt.
func TokenPrompt(ids []int) Prompt {
	return Prompt{Tokens: ids}
}

// IsTokens reports whether the prompt carries token ids.
func (p Prompt) IsTokens() bool {
	return p.Tokens != nil
}

// CompletionRequest is one call to the legacy completions endpoint.
type CompletionRequest struct {
	// Model is the engine name (e.g., "davinci", "gpt-neo-20b").
	Model string `json:"model"`

	// Prompts are sent as a batch; the response has one choice per prompt.
	Prompts []Prompt `json:"prompts"`

	// Echo returns the prompt tokens (with their log-probabilities) in front
	// of the generated tokens.
	Echo bool `json:"echo,omitempty"`

	MaxTokens int `json:"max_tokens"`

	// Logprobs requests this many top alternatives per position. Nil omits
	// log-probabilities from the response.
	Logprobs *int `json:"logprobs,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`

	Stop []string `json:"stop,omitempty"`
}

// CompletionResponse is the backend's answer to a CompletionRequest.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is the completion for one prompt.
type Choice struct {
	Index        int       `json:"index"`
	Text         string    `json:"text"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Logprobs     *Logprobs `json:"logprobs,omitempty"`
}

// Logprobs holds per-position token data for a choice. All slices are
// indexed by position. TokenLogprobs entries are nil where the backend has
// no prediction (the first echoed prompt token). TopLogprobs maps each
// alternative token to its log-probability and may hold nil maps.
type Logprobs struct {
	Tokens        []string             `json:"tokens"`
	TokenLogprobs []*float64           `json:"token_logprobs"`
	TopLogprobs   []map[string]float64 `json:"top_logprobs"`
	TextOffset    []int                `json:"text_offset,omitempty"`
}

// Usage reports token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SortChoices orders choices by their Index. Backends are not required to
// return choices in prompt order.
func SortChoices(choices []Choice) {
	sort.SliceStable(choices, func(i, j int) bool {
		return choices[i].Index < choices[j].Index
	})
}

// Int returns a pointer to v, for optional request fields.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 {
	return &v
}
