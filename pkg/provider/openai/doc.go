// Package openai implements the Provider interface on top of the official
// OpenAI Go SDK's legacy Completions service. SDK retries are disabled; wrap
// the provider with provider.NewRetrying to control backoff.
package openai
