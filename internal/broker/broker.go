// Package broker implements the medium's central write/read path: the
// channel registry, validation/authorization/attenuation/dispatch pipeline
// ("Emit"), and the bridge to an optional external transport and durable
// log.
//
// Known gap, preserved intentionally: when a transport is enabled, Emit
// publishes exclusively to the transport and does not also push into the
// local registry's broadcast queue. Local subscribers only receive
// same-process emits by way of the subscribe-created bridge goroutine
// reading the wave back off the transport. A same-process publish and a
// same-process subscribe on the same channel therefore round-trip through
// the transport even though they share a process.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibenet/medium/internal/mediumerr"
	"github.com/vibenet/medium/internal/persistence"
	"github.com/vibenet/medium/internal/transport"
	"github.com/vibenet/medium/internal/wave"
)

// channelNamePattern is the permitted alphabet for channel names:
// letters, digits, dot, underscore, asterisk, hyphen.
var channelNamePattern = regexp.MustCompile(`^[A-Za-z0-9._*-]+$`)

// Config holds the subset of the medium's configuration surface the
// broker itself consumes.
type Config struct {
	ChannelBufferSize int
	MaxPropagation    uint32
	// AttenuationFactor is parsed for completeness but unused: propagate
	// always attenuates by the fixed factor 0.95, per the wave invariant.
	AttenuationFactor float64
	MinAmplitude      float64
	UseTransport      bool
	AuthToken         string
	AllowedSources    []string
	MaxPayloadBytes   int
	MaxChannelLength  int
	PersistenceEnabled bool
	SnapshotInterval  uint64
}

// DefaultConfig returns the broker's documented defaults.
func DefaultConfig() Config {
	return Config{
		ChannelBufferSize: 1000,
		MaxPropagation:    10,
		AttenuationFactor: 0.95,
		MinAmplitude:      0.01,
		UseTransport:      true,
		MaxPayloadBytes:   1 << 20,
		MaxChannelLength:  128,
		SnapshotInterval:  1000,
	}
}

// Stats is a snapshot of the broker's cumulative counters.
type Stats struct {
	TotalWaves     uint64
	ActiveChannels uint64
	// TotalVibrators is always zero: nothing in the broker's write or
	// subscribe path increments a vibrator count.
	TotalVibrators uint64
}

// Broker is the medium: the channel registry plus the validation,
// authorization, attenuation, dispatch, persistence, and transport-bridge
// pipeline that sits in front of it.
type Broker struct {
	cfg    Config
	logger zerolog.Logger

	registry *Registry

	totalWaves uint64 // atomic

	transport transport.Transport
	log       persistence.DurableLog

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Broker. tr and log are both optional (nil disables that
// feature regardless of cfg.UseTransport/PersistenceEnabled).
func New(cfg Config, tr transport.Transport, log persistence.DurableLog, logger zerolog.Logger) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(cfg.ChannelBufferSize),
		transport: func() transport.Transport {
			if cfg.UseTransport {
				return tr
			}
			return nil
		}(),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Emit runs the central write path's ordered validation, authorization,
// attenuation, persistence, and dispatch pipeline against w.
func (b *Broker) Emit(ctx context.Context, w *wave.Wave) error {
	name := w.Channel.Name()

	if name == "" || len(name) > b.cfg.MaxChannelLength || !channelNamePattern.MatchString(name) {
		return fmt.Errorf("emit channel %q: %w", name, mediumerr.ErrValidation)
	}

	size, err := w.PayloadSize()
	if err != nil {
		return fmt.Errorf("emit: compute payload size: %w", err)
	}
	if size > b.cfg.MaxPayloadBytes {
		return fmt.Errorf("emit: payload size %d exceeds max %d: %w", size, b.cfg.MaxPayloadBytes, mediumerr.ErrValidation)
	}

	if b.cfg.AuthToken != "" {
		token, ok := w.AuthToken()
		if !ok || token != b.cfg.AuthToken {
			return fmt.Errorf("emit: %w", mediumerr.ErrAuthorization)
		}
	}

	if len(b.cfg.AllowedSources) > 0 {
		if w.Source == nil || !containsString(b.cfg.AllowedSources, *w.Source) {
			return fmt.Errorf("emit: %w", mediumerr.ErrAuthorization)
		}
	}

	if w.PropagationCount >= b.cfg.MaxPropagation {
		b.logger.Warn().Str("channel", name).Msg("broker: dropping wave, max propagation reached")
		return nil
	}
	if !w.IsValid(b.cfg.MinAmplitude) {
		b.logger.Warn().Str("channel", name).Msg("broker: dropping wave, amplitude below threshold")
		return nil
	}

	w.Propagate()

	var logIndex uint64
	var logged bool
	if b.log != nil {
		index, err := b.log.Append(*w)
		if err != nil {
			b.logger.Error().Err(err).Str("channel", name).Msg("broker: durable log append failed")
		} else {
			logIndex, logged = index, true
		}
	}

	if b.transport != nil {
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("emit: marshal wave: %w: %w", mediumerr.ErrTransmissionFailed, err)
		}
		if err := b.transport.Publish(ctx, name, data); err != nil {
			return fmt.Errorf("emit: %w", mediumerr.ErrTransmissionFailed)
		}
	} else {
		entry, _ := b.registry.getOrCreate(name)
		if delivered := entry.push(*w); delivered == 0 {
			b.logger.Warn().Str("channel", name).Msg("broker: emit had no subscribers")
		}
	}

	total := atomic.AddUint64(&b.totalWaves, 1)
	if b.cfg.SnapshotInterval > 0 && total%b.cfg.SnapshotInterval == 0 && logged {
		b.writeSnapshot(logIndex, total)
	}

	return nil
}

func (b *Broker) writeSnapshot(lastIndex, total uint64) {
	snap := persistence.Snapshot{
		LastIndex: lastIndex,
		Stats:     persistence.Stats{TotalWaves: total, ActiveChannels: uint64(b.registry.Len())},
		Timestamp: time.Now().UTC(),
	}
	if err := b.log.WriteSnapshot(snap); err != nil {
		b.logger.Error().Err(err).Msg("broker: snapshot write failed")
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Subscribe returns a fresh Subscription on channel, creating the registry
// entry if needed. If creating the entry and a transport is attached, it
// starts a background bridge goroutine that reads the translated subject
// off the transport and pushes deserialized waves into the local queue.
func (b *Broker) Subscribe(channel string) (*Subscription, error) {
	entry, created := b.registry.getOrCreate(channel)
	sub := entry.subscribe()

	if created && b.transport != nil {
		b.startBridge(entry, channel)
	}

	return sub, nil
}

func (b *Broker) startBridge(entry *channelEntry, channel string) {
	entry.mu.Lock()
	if entry.bridgeStarted {
		entry.mu.Unlock()
		return
	}
	entry.bridgeStarted = true
	entry.mu.Unlock()

	msgs, err := b.transport.Subscribe(b.ctx, channel)
	if err != nil {
		b.logger.Error().Err(err).Str("channel", channel).Msg("broker: transport bridge subscribe failed")
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range msgs {
			var w wave.Wave
			if err := json.Unmarshal(msg.Data, &w); err != nil {
				b.logger.Warn().Err(err).Str("channel", channel).Msg("broker: transport bridge deserialize failed, skipping")
				continue
			}
			entry.push(w)
		}
	}()
}

// SubscribeMany subscribes to each channel in order, returning one
// Subscription per input.
func (b *Broker) SubscribeMany(channels []string) ([]*Subscription, error) {
	subs := make([]*Subscription, 0, len(channels))
	for _, ch := range channels {
		sub, err := b.Subscribe(ch)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Stats returns a snapshot of the broker's cumulative counters, with
// ActiveChannels reconciled from the registry's current size.
func (b *Broker) Stats() Stats {
	return Stats{
		TotalWaves:     atomic.LoadUint64(&b.totalWaves),
		ActiveChannels: uint64(b.registry.Len()),
	}
}

// ActiveChannels returns a snapshot of current channel names.
func (b *Broker) ActiveChannels() []string {
	return b.registry.ActiveChannels()
}

// RemoveChannel removes the registry entry for name.
func (b *Broker) RemoveChannel(name string) error {
	if !b.registry.Remove(name) {
		return fmt.Errorf("remove channel %q: %w", name, mediumerr.ErrChannelNotFound)
	}
	return nil
}

// Clear drops all registry entries.
func (b *Broker) Clear() {
	b.registry.Clear()
}

// Recover loads the latest snapshot (if any) and returns every wave
// persisted after it, in index order. Returns an empty slice if no durable
// log is attached.
func (b *Broker) Recover() ([]wave.Wave, error) {
	if b.log == nil {
		return nil, nil
	}

	var start uint64
	snap, ok, err := b.log.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("recover: load snapshot: %w", errors.Join(mediumerr.ErrPersistence, err))
	}
	if ok {
		start = snap.LastIndex + 1
	}

	entries, err := b.log.Recover(start)
	if err != nil {
		return nil, fmt.Errorf("recover: %w", errors.Join(mediumerr.ErrPersistence, err))
	}

	waves := make([]wave.Wave, len(entries))
	for i, e := range entries {
		waves[i] = e.Wave
	}
	return waves, nil
}

// Close cancels and joins every background bridge goroutine and, if
// attached, closes the durable log and transport.
func (b *Broker) Close() error {
	b.cancel()
	b.wg.Wait()

	var err error
	if b.log != nil {
		if cerr := b.log.Close(); cerr != nil {
			err = cerr
		}
	}
	if b.transport != nil {
		if cerr := b.transport.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
