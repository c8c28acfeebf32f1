// Package api defines the request and result types exchanged between the
// evaluation harness and the lmscore model adapters.
//
// Core types:
//   - [LoglikelihoodRequest]: a (context, continuation) string pair to score
//   - [TokenRequest]: a tokenized scoring request with an optional cache key
//   - [LoglikelihoodResult]: summed continuation log-probability and greedy flag
//   - [GreedyRequest]: a context to complete up to the first stop string
//   - [APIError]: structured error with type, code, param, and message
//
// The package performs no I/O. All types marshal to the JSONL format read and
// written by the lmscore command.
package api
