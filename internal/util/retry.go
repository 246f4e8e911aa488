package util

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Backoff bounds retries of transient upstream failures with exponential delays.
// MaxRetries counts retries after the first attempt, so zero means a single call.
type Backoff struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Do runs fn until it succeeds, returns an error transient rejects, the retry
// budget is spent or ctx is done. The last error from fn is returned.
func (b Backoff) Do(ctx context.Context, transient func(error) bool, fn func(context.Context) error) error {
	base := b.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	backoff := retry.NewExponential(base)
	if b.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(b.MaxDelay, backoff)
	}
	backoff = retry.WithMaxRetries(b.MaxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && transient != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
