package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the optimistic retry budget. Only the proxy resolver retries;
// a human bid that loses a race is reported to the bidder as is.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is the first wait; later waits grow exponentially with jitter.
	Backoff time.Duration
}

// Do runs fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, retryable func(error) bool) error {
	attempts := max(p.MaxAttempts, 1)

	attempt := 0
	op := func() error {
		attempt++
		err := fn(attempt)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx))
}

func (p RetryPolicy) backOff() backoff.BackOff {
	if p.Backoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.MaxInterval = 50 * p.Backoff
	b.MaxElapsedTime = 0
	return b
}
