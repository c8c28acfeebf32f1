// Package openaicompat provides the shared HTTP client for OpenAI-compatible
// legacy completions backends (/v1/completions). It handles request
// translation, response decoding (including per-token log-probabilities),
// and mapping of HTTP and network failures to api.APIError.
//
// Provider adapters either use [Provider] directly or wrap [Client] with their
// own defaults.
package openaicompat
