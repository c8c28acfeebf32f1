// Package lm scores and generates text through a hosted completions API.
//
// An [LM] pairs a provider with a tokenizer and a [Profile] holding the
// model's fixed limits. It answers three kinds of evaluation requests:
//
//   - log-likelihood of a continuation given a context, plus whether the
//     continuation is what greedy decoding would have produced
//   - rolling log-likelihood of a whole document, scored in disjoint windows
//   - greedy generation until one of a set of stop strings
//
// Requests are deduplicated and sorted before they are sent in fixed-size
// batches, and answers are returned in the caller's original order. Each
// answer is also handed to an optional partial-result cache as soon as its
// batch completes.
package lm
