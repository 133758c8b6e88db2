package llm

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mailmind/mailmind/core"
)

// Retrying decorates a Client with bounded exponential backoff. A request
// that still fails after MaxRetries additional attempts surfaces as a
// core.ExternalServiceError; context cancellation stops retrying
// immediately.
type Retrying struct {
	inner           Client
	maxRetries      uint64
	initialInterval time.Duration
}

// RetryOption configures the Retrying decorator.
type RetryOption func(*Retrying)

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n uint64) RetryOption {
	return func(r *Retrying) {
		r.maxRetries = n
	}
}

// WithInitialInterval sets the first backoff wait.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.initialInterval = d
	}
}

// NewRetrying wraps a client with retry behavior.
func NewRetrying(inner Client, opts ...RetryOption) *Retrying {
	r := &Retrying{
		inner:           inner,
		maxRetries:      3,
		initialInterval: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Complete calls the inner client, retrying transient failures.
func (r *Retrying) Complete(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	attempt := 0

	op := func() error {
		attempt++
		var err error
		resp, err = r.inner.Complete(ctx, req)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		log.Printf("[LLM] attempt %d failed: %v", attempt, err)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err != nil {
		return nil, &core.ExternalServiceError{Service: "llm", Err: err}
	}
	return resp, nil
}
