package vibrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibenet/medium/internal/broker"
	"github.com/vibenet/medium/internal/wave"
)

func newTestBroker(t *testing.T) *broker.Broker {
	t.Helper()
	cfg := broker.DefaultConfig()
	cfg.UseTransport = false
	b := broker.New(cfg, nil, nil, zerolog.Nop())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestResonateOnMultipleAndEmitWaveIsReceived(t *testing.T) {
	b := newTestBroker(t)
	order := New(Config{Name: "order-service"}, b)
	require.NoError(t, order.ResonateOnMany([]string{"orders.created", "orders.cancelled"}))

	inventory := New(Config{Name: "inventory-service"}, b)
	require.NoError(t, inventory.ResonateOn("orders.created"))

	require.NoError(t, order.EmitWave(context.Background(), "orders.created", map[string]any{"id": 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w, ok := inventory.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, "orders.created", w.Channel.Name())
}

func TestReceiveFiltersOwnEmissions(t *testing.T) {
	b := newTestBroker(t)
	order := New(Config{Name: "order-service"}, b)
	require.NoError(t, order.ResonateOn("orders.created"))

	require.NoError(t, order.EmitWave(context.Background(), "orders.created", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := order.Receive(ctx)
	assert.False(t, ok, "a vibrator must never receive its own emissions")
}

func TestReceiveFiltersBelowNoiseFloor(t *testing.T) {
	b := newTestBroker(t)
	quiet := New(Config{Name: "quiet-service", NoiseFloor: 0.5}, b)
	require.NoError(t, quiet.ResonateOn("orders.created"))

	other := New(Config{Name: "order-service"}, b)
	w := wave.NewBuilder(wave.NewChannel("orders.created")).Source("order-service").Amplitude(0.2).Build()
	require.NoError(t, other.Emit(context.Background(), &w))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := quiet.Receive(ctx)
	assert.False(t, ok, "waves below the configured noise floor must be dropped")
}

func TestReceiveReturnsFalseWithNoResonatedChannels(t *testing.T) {
	b := newTestBroker(t)
	v := New(Config{Name: "idle-service"}, b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := v.Receive(ctx)
	assert.False(t, ok)
}

func TestReceiveFromRestrictsToOneChannel(t *testing.T) {
	b := newTestBroker(t)
	order := New(Config{Name: "order-service"}, b)
	require.NoError(t, order.ResonateOnMany([]string{"a", "b"}))

	other := New(Config{Name: "other"}, b)
	require.NoError(t, other.EmitWave(context.Background(), "b", "hello"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w, ok := order.ReceiveFrom(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "b", w.Channel.Name())
}

func TestResonateHoppingSubscribesToEntireHopSet(t *testing.T) {
	b := newTestBroker(t)
	v := New(Config{Name: "hopper"}, b)
	base := wave.NewChannel("telemetry")
	require.NoError(t, v.ResonateHopping(base, 3))
	assert.Len(t, v.subs, 3)
}

func TestEmitSetsAuthTokenWhenConfigured(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.UseTransport = false
	cfg.AuthToken = "secret"
	protected := broker.New(cfg, nil, nil, zerolog.Nop())
	defer protected.Close()

	v := New(Config{Name: "authed-service", AuthToken: "secret"}, protected)
	require.NoError(t, v.ResonateOn("secure.channel"))
	require.NoError(t, v.EmitWave(context.Background(), "secure.channel", nil))
}

func TestEmitterClonesEmitBehavior(t *testing.T) {
	b := newTestBroker(t)
	v := New(Config{Name: "worker-owner"}, b)
	require.NoError(t, v.ResonateOn("jobs.done"))

	emitter := v.Emitter()
	require.NoError(t, emitter.EmitWave(context.Background(), "jobs.done", "payload"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, ok := v.Receive(ctx)
	assert.False(t, ok, "the emitter shares its owner's name, so the owner must filter its own emission")
}
