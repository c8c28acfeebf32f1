package api

// LoglikelihoodRequest asks for the log-probability of Continuation
// following Context.
type LoglikelihoodRequest struct {
	Context      string `json:"context"`
	Continuation string `json:"continuation"`
}

// TokenRequest is a scoring request after tokenization. Context and
// Continuation are token ids. CacheKey identifies the request in the
// partial-result cache; nil means the answer is not cached.
type TokenRequest struct {
	CacheKey     any   `json:"cache_key,omitempty"`
	Context      []int `json:"context"`
	Continuation []int `json:"continuation"`
}

// Tokens returns the concatenation of context and continuation.
func (r TokenRequest) Tokens() []int {
	out := make([]int, 0, len(r.Context)+len(r.Continuation))
	out = append(out, r.Context...)
	return append(out, r.Continuation...)
}

// LoglikelihoodResult is the answer to a scoring request.
type LoglikelihoodResult struct {
	// LogProb is the summed log-probability of the continuation tokens.
	LogProb float64 `json:"logprob"`

	// IsGreedy reports whether every continuation token was the model's
	// top-ranked prediction.
	IsGreedy bool `json:"is_greedy"`
}

// RollingRequest asks for the log-likelihood of a whole text, scored in
// rolling windows of the model's maximum context length.
type RollingRequest struct {
	Text string `json:"text"`
}

// RollingResult is the summed log-probability of a RollingRequest.
type RollingResult struct {
	LogProb float64 `json:"logprob"`
}

// GreedyRequest asks for a greedy (temperature 0) completion of Context.
// Generation stops at the first occurrence of any Until string, which is
// removed from the returned text.
type GreedyRequest struct {
	Context string   `json:"context"`
	Until   []string `json:"until"`
}

// GreedyResult is the generated text for a GreedyRequest.
type GreedyResult struct {
	Text string `json:"text"`
}
