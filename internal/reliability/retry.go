// Package reliability implements the retry, circuit-breaker, and bounded
// task-pool primitives that services wrap around broker and vibrator calls.
package reliability

import (
	"context"
	"errors"
	"time"

	"github.com/vibenet/medium/internal/mediumerr"
)

// RetryPolicy controls retry_with_timeout's attempt count and backoff curve.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// NewRetryPolicy builds a RetryPolicy, clamping MaxRetries to zero or more.
func NewRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// backoffDelay returns the sleep before attempt number attempt (1-indexed:
// attempt 1 is the delay before the first retry). attempt 0 sleeps nothing.
func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	factor := saturatingPow2(attempt - 1)
	delay := saturatingMulDuration(p.BaseDelay, factor)
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// saturatingPow2 computes 2^n as a uint64, saturating at MaxUint64 instead
// of wrapping on overflow.
func saturatingPow2(n int) uint64 {
	if n <= 0 {
		return 1
	}
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1) << uint(n)
}

// saturatingMulDuration multiplies d by factor, saturating at the maximum
// representable Duration instead of overflowing.
func saturatingMulDuration(d time.Duration, factor uint64) time.Duration {
	if d <= 0 || factor == 0 {
		return 0
	}
	const maxDuration = time.Duration(1<<63 - 1)
	if factor > uint64(maxDuration)/uint64(d) {
		return maxDuration
	}
	return d * time.Duration(factor)
}

// RetryWithTimeout runs f under a per-attempt timeout, retrying with
// exponential backoff on timeout or error until policy.MaxRetries is
// exhausted. Total attempts on an all-failing f is MaxRetries+1.
func RetryWithTimeout[T any](ctx context.Context, policy RetryPolicy, perAttempt time.Duration, f func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		value, err := f(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && err != nil
		cancel()

		if err == nil {
			return value, nil
		}
		if timedOut {
			lastErr = context.DeadlineExceeded
		} else {
			lastErr = err
		}

		if attempt >= policy.MaxRetries {
			return zero, lastErr
		}

		delay := policy.backoffDelay(attempt + 1)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}
}

// Errors surfaced directly by the reliability layer, independent of the
// wrapped call's own error.
var ErrCircuitOpen = mediumerr.ErrCircuitOpen
