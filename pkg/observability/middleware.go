package observability

import (
	"net/http"
	"strconv"
)

// InstrumentTransport wraps an http.RoundTripper to record one
// lmscore_http_requests_total sample per round trip. Network failures are
// recorded with status "error". A nil next uses http.DefaultTransport.
func InstrumentTransport(provider string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &instrumentedTransport{provider: provider, next: next}
}

type instrumentedTransport struct {
	provider string
	next     http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	InflightRequests.Inc()
	defer InflightRequests.Dec()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		HTTPRequestsTotal.WithLabelValues(t.provider, "error").Inc()
		return nil, err
	}

	// Status class label like "2xx", "4xx", "5xx".
	HTTPRequestsTotal.WithLabelValues(t.provider, strconv.Itoa(resp.StatusCode/100)+"xx").Inc()
	return resp, nil
}
