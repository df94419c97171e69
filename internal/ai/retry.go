package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultRetryBase is the first backoff step between attempts.
const DefaultRetryBase = 500 * time.Millisecond

// RetryPolicy bounds how often a transport repeats a retryable failure.
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
}

// Do runs call, repeating it with Fibonacci backoff while it fails with a
// retryable *TransportError.
func (p RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) (*Response, error)) (*Response, error) {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryBase
	}

	var resp *Response
	err := retry.Do(ctx, retry.WithMaxRetries(p.MaxRetries, retry.NewFibonacci(base)), func(ctx context.Context) error {
		var err error
		resp, err = call(ctx)
		if err == nil {
			return nil
		}
		var te *TransportError
		if errors.As(err, &te) && te.Retryable() {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
