// Package vibrator implements the subscriber-side of the medium: named
// services that resonate on channels, filter their own emissions and
// sub-threshold noise out of what they receive, and emit waves back
// through a shared broker.
package vibrator

import (
	"context"
	"time"

	"github.com/vibenet/medium/internal/broker"
	"github.com/vibenet/medium/internal/wave"
)

// pollInterval is the sleep between empty poll sweeps in Receive.
const pollInterval = 10 * time.Millisecond

// DefaultNoiseFloor is the amplitude below which a received wave is
// silently dropped by a vibrator that did not configure its own.
const DefaultNoiseFloor = 0.01

// channelSub pairs a subscribed channel name with its broker subscription.
type channelSub struct {
	channel string
	sub     *broker.Subscription
}

// Vibrator is a named broker client: it resonates on channels and emits
// waves tagged with its own name and, if configured, an auth token.
type Vibrator struct {
	name       string
	broker     *broker.Broker
	authToken  string
	noiseFloor float64

	subs []channelSub
}

// Config carries a Vibrator's identity and receive-side filtering.
type Config struct {
	Name       string
	AuthToken  string
	NoiseFloor float64
}

// New builds a Vibrator bound to b. NoiseFloor defaults to
// DefaultNoiseFloor when zero.
func New(cfg Config, b *broker.Broker) *Vibrator {
	noiseFloor := cfg.NoiseFloor
	if noiseFloor == 0 {
		noiseFloor = DefaultNoiseFloor
	}
	return &Vibrator{name: cfg.Name, broker: b, authToken: cfg.AuthToken, noiseFloor: noiseFloor}
}

// Name returns the vibrator's configured name.
func (v *Vibrator) Name() string {
	return v.name
}

// ResonateOn subscribes to channel through the broker and tracks the
// resulting subscription.
func (v *Vibrator) ResonateOn(channel string) error {
	sub, err := v.broker.Subscribe(channel)
	if err != nil {
		return err
	}
	v.subs = append(v.subs, channelSub{channel: channel, sub: sub})
	return nil
}

// ResonateOnMany subscribes to each channel in order.
func (v *Vibrator) ResonateOnMany(channels []string) error {
	for _, ch := range channels {
		if err := v.ResonateOn(ch); err != nil {
			return err
		}
	}
	return nil
}

// ResonateHopping subscribes to every channel in base's hop set of size n.
func (v *Vibrator) ResonateHopping(base wave.Channel, n int) error {
	for _, ch := range base.HopSet(n) {
		if err := v.ResonateOn(ch.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Emit sets metadata.auth_token (if configured) and forwards w to the
// broker.
func (v *Vibrator) Emit(ctx context.Context, w *wave.Wave) error {
	if v.authToken != "" {
		w.SetAuthToken(v.authToken)
	}
	return v.broker.Emit(ctx, w)
}

// EmitWave builds a wave on channel with source set to this vibrator's
// name and emits it.
func (v *Vibrator) EmitWave(ctx context.Context, channel string, payload any) error {
	w := wave.NewBuilder(wave.NewChannel(channel)).Payload(payload).Source(v.name).Build()
	return v.Emit(ctx, &w)
}

// EmitHoppingWave emits a wave on base.Hop(i, n).
func (v *Vibrator) EmitHoppingWave(ctx context.Context, base wave.Channel, i, n int, payload any) error {
	w := wave.NewBuilder(base.Hop(i, n)).Payload(payload).Source(v.name).Build()
	return v.Emit(ctx, &w)
}

// EmitTimeHoppingWave emits a wave on base.HopNow(n, intervalMs).
func (v *Vibrator) EmitTimeHoppingWave(ctx context.Context, base wave.Channel, n int, intervalMs int64, payload any) error {
	w := wave.NewBuilder(base.HopNow(n, intervalMs)).Payload(payload).Source(v.name).Build()
	return v.Emit(ctx, &w)
}

// EmitBytes is EmitWave with an opaque byte payload instead of a
// structured one.
func (v *Vibrator) EmitBytes(ctx context.Context, channel string, data []byte) error {
	w := wave.NewBuilder(wave.NewChannel(channel)).PayloadBytes(data).Source(v.name).Build()
	return v.Emit(ctx, &w)
}

// Receive polls every resonated channel in a non-blocking sweep, filtering
// out this vibrator's own emissions and anything below its noise floor. If
// every handle is empty, it sleeps pollInterval and sweeps again. Returns
// ok=false when there are no resonated channels at all or ctx is done.
func (v *Vibrator) Receive(ctx context.Context) (w wave.Wave, ok bool) {
	if len(v.subs) == 0 {
		return wave.Wave{}, false
	}

	for {
		for _, cs := range v.subs {
			got, result, _ := cs.sub.TryRead()
			switch result {
			case broker.ReadOK:
				if v.shouldDrop(got) {
					continue
				}
				return got, true
			case broker.ReadLagged, broker.ReadEmpty, broker.ReadClosed:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return wave.Wave{}, false
		case <-time.After(pollInterval):
		}
	}
}

// ReceiveFrom polls only the subscription for channel, applying the same
// source/noise-floor filtering as Receive. Returns ok=false if channel was
// never resonated on or ctx is cancelled.
func (v *Vibrator) ReceiveFrom(ctx context.Context, channel string) (w wave.Wave, ok bool) {
	var target *broker.Subscription
	for _, cs := range v.subs {
		if cs.channel == channel {
			target = cs.sub
			break
		}
	}
	if target == nil {
		return wave.Wave{}, false
	}

	for {
		got, result, _ := target.TryRead()
		switch result {
		case broker.ReadOK:
			if !v.shouldDrop(got) {
				return got, true
			}
		case broker.ReadClosed:
			return wave.Wave{}, false
		}

		select {
		case <-ctx.Done():
			return wave.Wave{}, false
		case <-time.After(pollInterval):
		}
	}
}

func (v *Vibrator) shouldDrop(w wave.Wave) bool {
	if w.Source != nil && *w.Source == v.name {
		return true
	}
	return w.Amplitude.Value() < v.noiseFloor
}

// Emitter is a clonable lightweight handle carrying only what's needed to
// emit on behalf of this vibrator, so worker tasks can emit without
// holding the full Vibrator (and its subscription set).
type Emitter struct {
	name      string
	broker    *broker.Broker
	authToken string
}

// Emitter returns a clonable emit-only handle for v.
func (v *Vibrator) Emitter() Emitter {
	return Emitter{name: v.name, broker: v.broker, authToken: v.authToken}
}

// Emit sets metadata.auth_token (if configured) and forwards w to the
// broker.
func (e Emitter) Emit(ctx context.Context, w *wave.Wave) error {
	if e.authToken != "" {
		w.SetAuthToken(e.authToken)
	}
	return e.broker.Emit(ctx, w)
}

// EmitWave builds a wave on channel with source set to the owning
// vibrator's name and emits it.
func (e Emitter) EmitWave(ctx context.Context, channel string, payload any) error {
	w := wave.NewBuilder(wave.NewChannel(channel)).Payload(payload).Source(e.name).Build()
	return e.Emit(ctx, &w)
}
