// Package gooseai implements the Provider interface for GooseAI. GooseAI
// serves the legacy completions protocol under engine-scoped routes, so this
// adapter delegates HTTP communication to the shared openaicompat.Client and
// only accepts text prompts.
package gooseai
