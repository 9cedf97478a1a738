package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 50*time.Millisecond, 2)
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerOpensAfterThresholdFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond, 1)
	boom := errors.New("boom")

	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))
	assert.Equal(t, "closed", cb.State())

	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))
	assert.Equal(t, "open", cb.State())

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		t.Fatal("call must not be forwarded while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerClosedResetsFailuresOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond, 1)
	boom := errors.New("boom")

	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))
	require.NoError(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }))
	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))

	assert.Equal(t, "closed", cb.State(), "failure count should have reset after the intervening success")
}

func TestCircuitBreakerHalfOpensAfterOpenDurationAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 5*time.Millisecond, 2)
	boom := errors.New("boom")

	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))
	assert.Equal(t, "open", cb.State())

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, "half_open", cb.State())

	require.NoError(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 5*time.Millisecond, 2)
	boom := errors.New("boom")

	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))
	time.Sleep(10 * time.Millisecond)

	require.Error(t, cb.Call(context.Background(), func(ctx context.Context) error { return boom }))
	assert.Equal(t, "open", cb.State())
}
