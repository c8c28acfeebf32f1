// Package provider defines the boundary to a hosted completion API.
//
// A Provider issues one legacy-style completion request (engine, prompts,
// echo, max_tokens, logprobs, temperature, stop) and returns the raw choices,
// including per-token log-probabilities and the top alternative tokens at
// each position. Transport adapters (openaicompat, openai, gooseai) implement
// the interface; the wrappers in this package add behavior around any of them:
//
//   - [Retrying]: retries failed calls with exponential backoff, indefinitely
//     unless a cap is configured, until the context is cancelled
//   - [FanOut]: splits a multi-prompt request into concurrent single-prompt
//     requests and reassembles the choices in prompt order
//   - [Instrumented]: records Prometheus metrics per call
package provider
