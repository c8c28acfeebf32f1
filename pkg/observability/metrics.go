// Package observability provides Prometheus metrics for lmscore runs and
// HTTP instrumentation for the completion transports.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for completion latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// ProviderRequestsTotal counts completion calls by outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmscore_provider_requests_total",
			Help: "Completion requests sent to the provider",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records completion call latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lmscore_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens reported by the provider (prompt/completion).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmscore_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ProviderRetriesTotal counts failed attempts that were retried.
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmscore_provider_retries_total",
			Help: "Retried provider attempts",
		},
		[]string{"provider", "error_type"},
	)

	// InflightRequests tracks completion requests currently on the wire.
	InflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lmscore_provider_inflight_requests",
			Help: "In-flight completion requests",
		},
	)

	// HTTPRequestsTotal counts HTTP round trips by status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmscore_http_requests_total",
			Help: "HTTP round trips to the completion backend",
		},
		[]string{"provider", "status"},
	)

	// RequestsScoredTotal counts harness requests answered, by method.
	RequestsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmscore_requests_scored_total",
			Help: "Harness requests answered",
		},
		[]string{"method"},
	)

	// CacheWritesTotal counts partial-cache writes by store and outcome.
	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmscore_cache_writes_total",
			Help: "Partial cache writes",
		},
		[]string{"store", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ProviderRetriesTotal,
		InflightRequests,
		HTTPRequestsTotal,
		RequestsScoredTotal,
		CacheWritesTotal,
	)
}
