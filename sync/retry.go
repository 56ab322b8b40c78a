package sync

import (
	"time"

	"github.com/cenkalti/backoff"
)

// RetryPolicy bounds every outbound call: exponential backoff starting at
// BaseDelay, at most MaxAttempts tries.
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the original scripts: three tries, 1.5s base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 1500 * time.Millisecond}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxElapsedTime = 0
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithMaxRetries(b, attempts-1)
}

// Do runs op under the policy. Wrap an error with backoff.Permanent to stop
// retrying early (auth failures, 4xx other than 429).
func (p RetryPolicy) Do(op func() error) error {
	return backoff.Retry(op, p.backOff())
}
