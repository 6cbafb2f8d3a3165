package swing

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the automatic retries of one I/O stage.
// MaxAttempts counts the first try; 1 disables retrying.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NoRetry runs each stage exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempt
// budget is spent, or ctx is done. Errors are classified before the
// retryable check.
func (p RetryPolicy) Do(ctx context.Context, logger Logger, stage Stage, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		classified := Classify(err)
		if !classified.Kind.Retryable() {
			return backoff.Permanent(err)
		}
		if attempt < attempts {
			logger.Warn("stage failed, retrying", "stage", string(stage), "attempt", attempt, "error", err)
		}
		return err
	}, b)
}
