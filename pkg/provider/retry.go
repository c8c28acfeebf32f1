package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/observability"
)

// RetryConfig controls the backoff schedule of a Retrying provider.
type RetryConfig struct {
	// InitialInterval is the wait after the first failure. Default 3s.
	InitialInterval time.Duration

	// Multiplier grows the wait after each further failure. Default 1.5.
	Multiplier float64

	// MaxInterval caps a single wait. Zero leaves the wait uncapped.
	MaxInterval time.Duration

	// MaxElapsedTime gives up once this much time has passed since the
	// first attempt. Zero retries until the context is cancelled.
	MaxElapsedTime time.Duration

	// RandomizationFactor jitters each wait by +/- this fraction. Default 0.
	RandomizationFactor float64

	// FailFastOnClientErrors returns invalid_request, authentication and
	// not_found errors immediately instead of retrying them.
	FailFastOnClientErrors bool
}

// DefaultRetryConfig returns the schedule used when nothing is configured:
// 3s, 4.5s, 6.75s, ... with no upper bound on the number of attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 3 * time.Second,
		Multiplier:      1.5,
	}
}

func (c RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 3 * time.Second
	}
	b.Multiplier = c.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1.5
	}
	b.MaxInterval = c.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.MaxElapsedTime = c.MaxElapsedTime
	b.RandomizationFactor = c.RandomizationFactor
	b.Reset()
	return b
}

// Retrying wraps a Provider and repeats failed completion calls with
// exponential backoff. With the default configuration it never gives up on
// its own; cancel the context to stop it.
type Retrying struct {
	next Provider
	cfg  RetryConfig
}

var _ Provider = (*Retrying)(nil)

// NewRetrying wraps next with the given retry schedule.
func NewRetrying(next Provider, cfg RetryConfig) *Retrying {
	return &Retrying{next: next, cfg: cfg}
}

// Name returns the wrapped provider's name.
func (r *Retrying) Name() string { return r.next.Name() }

// Capabilities returns the wrapped provider's capabilities.
func (r *Retrying) Capabilities() Capabilities { return r.next.Capabilities() }

// Close closes the wrapped provider.
func (r *Retrying) Close() error { return r.next.Close() }

// Complete calls the wrapped provider until it succeeds, the context is
// cancelled, or a configured cap is reached.
func (r *Retrying) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var (
		resp    *CompletionResponse
		attempt int
	)

	op := func() error {
		attempt++
		var err error
		resp, err = r.next.Complete(ctx, req)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if r.cfg.FailFastOnClientErrors && !api.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		observability.ProviderRetriesTotal.WithLabelValues(r.next.Name(), errorType(err)).Inc()
		slog.Warn("completion request failed, retrying",
			"provider", r.next.Name(),
			"model", req.Model,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(r.cfg.newBackOff(), ctx), notify)
	if err != nil {
		return nil, fmt.Errorf("%s: completion failed after %d attempts: %w", r.next.Name(), attempt, err)
	}

	if attempt > 1 {
		debug.Log("retry", "completion succeeded after retries", "provider", r.next.Name(), "attempts", attempt)
	}
	return resp, nil
}

func errorType(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Type)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unknown"
}
