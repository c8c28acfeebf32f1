package api

import "fmt"

// ValidateLoglikelihood checks scoring requests before any tokenization or
// network call. It returns an *APIError naming the first invalid request.
func ValidateLoglikelihood(reqs []LoglikelihoodRequest) *APIError {
	for i, r := range reqs {
		if r.Continuation == "" {
			return NewInvalidRequestError(fmt.Sprintf("requests[%d].continuation", i),
				"continuation must not be empty")
		}
	}
	return nil
}

// ValidateTokenRequests checks tokenized scoring requests.
func ValidateTokenRequests(reqs []TokenRequest) *APIError {
	for i, r := range reqs {
		if len(r.Continuation) == 0 {
			return NewInvalidRequestError(fmt.Sprintf("requests[%d].continuation", i),
				"continuation must contain at least one token")
		}
		if len(r.Context) == 0 {
			return NewInvalidRequestError(fmt.Sprintf("requests[%d].context", i),
				"context must contain at least one token")
		}
	}
	return nil
}

// ValidateGreedy checks generation requests. Empty stop strings would
// truncate every completion to the empty string.
func ValidateGreedy(reqs []GreedyRequest) *APIError {
	for i, r := range reqs {
		for j, u := range r.Until {
			if u == "" {
				return NewInvalidRequestError(fmt.Sprintf("requests[%d].until[%d]", i, j),
					"stop strings must not be empty")
			}
		}
	}
	return nil
}
