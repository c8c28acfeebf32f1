package gooseai

import "time"

// DefaultBaseURL is the public GooseAI endpoint.
const DefaultBaseURL = "https://api.goose.ai"

// Config holds configuration for the GooseAI provider adapter.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the GooseAI secret key.
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// ModelMapping maps requested engine names to GooseAI engine ids.
	// Engines not in the map are passed through unchanged.
	ModelMapping map[string]string
}
