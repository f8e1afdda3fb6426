package imagegen

import (
	"context"
	"time"
)

// RetryPolicy controls same-model retries inside the invoker.
type RetryPolicy struct {
	MaxRetries int
	Backoff    func(retry int) time.Duration
}

// LinearBackoff waits unit before the first retry, 2*unit before the second, and so on.
func LinearBackoff(unit time.Duration) func(int) time.Duration {
	return func(retry int) time.Duration {
		if retry < 1 {
			retry = 1
		}
		return time.Duration(retry) * unit
	}
}

// DefaultRetryPolicy allows two retries with a one second linear backoff unit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Backoff: LinearBackoff(time.Second)}
}

// Delay returns how long to wait before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(retry)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
