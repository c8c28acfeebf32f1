package provider

import (
	"context"
	"time"

	"github.com/rhuss/lmscore/pkg/observability"
)

// Instrumented records request counts, latency and token usage for every
// call to the wrapped provider.
type Instrumented struct {
	next Provider
}

var _ Provider = (*Instrumented)(nil)

// NewInstrumented wraps next with Prometheus instrumentation.
func NewInstrumented(next Provider) *Instrumented {
	return &Instrumented{next: next}
}

func (p *Instrumented) Name() string               { return p.next.Name() }
func (p *Instrumented) Capabilities() Capabilities { return p.next.Capabilities() }
func (p *Instrumented) Close() error               { return p.next.Close() }

func (p *Instrumented) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	name := p.next.Name()
	start := time.Now()

	resp, err := p.next.Complete(ctx, req)

	observability.ProviderLatency.WithLabelValues(name, req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(name, req.Model, "error").Inc()
		return nil, err
	}

	observability.ProviderRequestsTotal.WithLabelValues(name, req.Model, "success").Inc()
	observability.ProviderTokensTotal.WithLabelValues(name, req.Model, "input").Add(float64(resp.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(name, req.Model, "output").Add(float64(resp.Usage.CompletionTokens))
	return resp, nil
}
