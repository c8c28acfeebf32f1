package lm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/provider"
)

var (
	// ErrShortResponse is returned when a response has fewer tokens or
	// choices than the request requires.
	ErrShortResponse = errors.New("response too short")

	// ErrMissingLogprobs is returned when a response lacks log-probabilities
	// for a position being scored.
	ErrMissingLogprobs = errors.New("response missing logprobs")
)

// ExtractResult turns the log-probabilities of an echoed completion into a
// log-likelihood result. The last position holds the single generated token
// and is ignored. Positions from ctxlen on belong to the continuation: their
// log-probabilities are summed, and the result is greedy when every one of
// them is the highest-ranked alternative at its position.
//
// ctxlen below 1 is treated as 1, since the first position never has a
// log-probability. When the echoed prompt has no positions past ctxlen,
// which happens when the backend re-tokenizes a text prompt into fewer
// tokens, the continuation is empty: the result is zero and greedy, and a
// warning is logged.
func ExtractResult(lp *provider.Logprobs, ctxlen int) (api.LoglikelihoodResult, error) {
	var res api.LoglikelihoodResult
	if lp == nil {
		return res, ErrMissingLogprobs
	}

	n := len(lp.Tokens) - 1
	if n < 1 {
		return res, fmt.Errorf("%w: %d tokens", ErrShortResponse, len(lp.Tokens))
	}
	if len(lp.TokenLogprobs) < n || len(lp.TopLogprobs) < n {
		return res, fmt.Errorf("%w: %d tokens but %d logprobs and %d top logprobs",
			ErrMissingLogprobs, len(lp.Tokens), len(lp.TokenLogprobs), len(lp.TopLogprobs))
	}

	ctxlen = max(ctxlen, 1)
	res.IsGreedy = true
	if ctxlen > n {
		slog.Warn("echoed prompt shorter than its context, scoring an empty continuation",
			"ctxlen", ctxlen, "positions", n)
		return res, nil
	}

	for i := ctxlen; i < n; i++ {
		v := lp.TokenLogprobs[i]
		if v == nil {
			return res, fmt.Errorf("%w: position %d", ErrMissingLogprobs, i)
		}
		res.LogProb += *v

		if res.IsGreedy {
			top := lp.TopLogprobs[i]
			if len(top) == 0 {
				return res, fmt.Errorf("%w: no alternatives at position %d", ErrMissingLogprobs, i)
			}
			res.IsGreedy = isArgmax(top, lp.Tokens[i])
		}
	}
	return res, nil
}

// isArgmax reports whether token carries the highest log-probability in top.
// Ties count as greedy.
func isArgmax(top map[string]float64, token string) bool {
	v, ok := top[token]
	if !ok {
		return false
	}
	for _, other := range top {
		if other > v {
			return false
		}
	}
	return true
}
