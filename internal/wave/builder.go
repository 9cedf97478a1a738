package wave

import (
	"time"

	"github.com/google/uuid"
)

// Builder constructs a Wave. The zero value is not usable; use NewBuilder.
type Builder struct {
	channel      Channel
	payload      any
	payloadSet   bool
	payloadBytes []byte
	waveType     WaveType
	amplitude    Amplitude
	source       *string
	metadata     map[string]any
	schemaVer    uint16
}

// NewBuilder starts a Wave builder bound to channel, with the medium's
// defaults: wave type Event, amplitude 1.0, empty metadata, current schema
// version.
func NewBuilder(channel Channel) *Builder {
	return &Builder{
		channel:   channel,
		waveType:  Event,
		amplitude: DefaultAmplitude,
		metadata:  make(map[string]any),
		schemaVer: CurrentSchemaVersion,
	}
}

// Payload sets the structured payload.
func (b *Builder) Payload(payload any) *Builder {
	b.payload = payload
	b.payloadSet = true
	return b
}

// PayloadBytes sets the opaque byte payload.
func (b *Builder) PayloadBytes(payload []byte) *Builder {
	b.payloadBytes = payload
	return b
}

// Type sets the wave type.
func (b *Builder) Type(t WaveType) *Builder {
	b.waveType = t
	return b
}

// Amplitude sets the amplitude (clamped to [0,1]).
func (b *Builder) Amplitude(value float64) *Builder {
	b.amplitude = NewAmplitude(value)
	return b
}

// Source sets the source vibrator name.
func (b *Builder) Source(source string) *Builder {
	b.source = &source
	return b
}

// Metadata replaces the metadata map.
func (b *Builder) Metadata(metadata map[string]any) *Builder {
	b.metadata = metadata
	return b
}

// SchemaVersion overrides the schema version (defaults to current).
func (b *Builder) SchemaVersion(version uint16) *Builder {
	b.schemaVer = version
	return b
}

// Build assigns a fresh UUID, sets timestamp to now, phase 0, hop count 0.
// If both payloads are omitted, the structured payload is an empty object;
// if only an opaque payload is set, the structured payload is null.
func (b *Builder) Build() Wave {
	payload := b.payload
	if !b.payloadSet {
		if b.payloadBytes != nil {
			payload = nil
		} else {
			payload = map[string]any{}
		}
	}
	metadata := b.metadata
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return Wave{
		SchemaVersion:    b.schemaVer,
		ID:               uuid.New(),
		Type:             b.waveType,
		Channel:          b.channel,
		Payload:          payload,
		PayloadBytes:     b.payloadBytes,
		Amplitude:        b.amplitude,
		Source:           b.source,
		Timestamp:        time.Now(),
		Metadata:         metadata,
		Phase:            0,
		PropagationCount: 0,
	}
}
