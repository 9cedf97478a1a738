package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithTimeoutSucceedsWithoutRetrying(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond)
	calls := 0

	got, err := RetryWithTimeout(context.Background(), policy, 50*time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestRetryWithTimeoutRetriesOnErrorThenSucceeds(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 5*time.Millisecond)
	calls := 0
	boom := errors.New("boom")

	got, err := RetryWithTimeout(context.Background(), policy, 50*time.Millisecond, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", boom
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryWithTimeoutExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	policy := NewRetryPolicy(2, time.Millisecond, 2*time.Millisecond)
	calls := 0
	boom := errors.New("boom")

	_, err := RetryWithTimeout(context.Background(), policy, 50*time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestRetryWithTimeoutTreatsTimeoutAsRetryableFailure(t *testing.T) {
	policy := NewRetryPolicy(1, time.Millisecond, time.Millisecond)

	_, err := RetryWithTimeout(context.Background(), policy, 5*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDelayFollowsExponentialCurveAndCaps(t *testing.T) {
	policy := NewRetryPolicy(5, 10*time.Millisecond, 50*time.Millisecond)

	assert.Equal(t, time.Duration(0), policy.backoffDelay(0))
	assert.Equal(t, 10*time.Millisecond, policy.backoffDelay(1))
	assert.Equal(t, 20*time.Millisecond, policy.backoffDelay(2))
	assert.Equal(t, 40*time.Millisecond, policy.backoffDelay(3))
	assert.Equal(t, 50*time.Millisecond, policy.backoffDelay(4)) // capped at max_delay
}
