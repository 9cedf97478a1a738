package wave

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is the schema version this implementation produces
// and the ceiling against which incoming waves are checked for compatibility.
const CurrentSchemaVersion uint16 = 1

// DefaultMinAmplitude is the validity threshold used when the broker isn't
// configured with a different one.
const DefaultMinAmplitude = 0.01

// WaveType classifies the intent of a wave.
type WaveType string

const (
	Event     WaveType = "Event"
	Command   WaveType = "Command"
	Query     WaveType = "Query"
	Response  WaveType = "Response"
	Broadcast WaveType = "Broadcast"
)

// Wave is an immutable-after-build message carrying identity, channel
// binding, payload, amplitude, phase, hop count, timestamp, metadata, and
// schema version. It is mutated only by the broker during emission
// (Propagate, and optional auth-token injection by a vibrator pre-emit) and
// never after reception.
type Wave struct {
	SchemaVersion    uint16
	ID               uuid.UUID
	Type             WaveType
	Channel          Channel
	Payload          any
	PayloadBytes     []byte
	Amplitude        Amplitude
	Source           *string
	Timestamp        time.Time
	Metadata         map[string]any
	Phase            float64
	PropagationCount uint32
}

// Propagate atomically increments the hop count, multiplies amplitude by
// the fixed attenuation constant 0.95, and advances phase by pi/4.
func (w *Wave) Propagate() {
	w.PropagationCount++
	w.Amplitude.Attenuate(0.95)
	w.Phase += math.Pi / 4
}

// IsValid reports whether amplitude exceeds threshold.
func (w *Wave) IsValid(threshold float64) bool {
	return w.Amplitude.Value() > threshold
}

// IsSchemaCompatible reports whether this wave's schema version is supported
// by the current implementation.
func (w *Wave) IsSchemaCompatible() bool {
	return w.SchemaVersion <= CurrentSchemaVersion
}

// AuthToken reads the conventional "auth_token" metadata field.
func (w *Wave) AuthToken() (string, bool) {
	if w.Metadata == nil {
		return "", false
	}
	v, ok := w.Metadata["auth_token"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetAuthToken sets the conventional "auth_token" metadata field, creating
// the metadata map if absent.
func (w *Wave) SetAuthToken(token string) {
	if w.Metadata == nil {
		w.Metadata = make(map[string]any, 1)
	}
	w.Metadata["auth_token"] = token
}

// PayloadSize returns the byte length the broker charges against
// max_payload_bytes: the opaque byte payload's length if present, else the
// serialized structured payload's length.
func (w *Wave) PayloadSize() (int, error) {
	if w.PayloadBytes != nil {
		return len(w.PayloadBytes), nil
	}
	b, err := json.Marshal(w.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload for size check: %w", err)
	}
	return len(b), nil
}

// wireWave is the JSON wire representation described by the transport
// bridge contract. encoding/json already base64-encodes []byte fields, so
// PayloadBytes needs no manual encoding.
type wireWave struct {
	SchemaVersion    uint16         `json:"schema_version"`
	ID               string         `json:"id"`
	WaveType         WaveType       `json:"wave_type"`
	Channel          wireChannel    `json:"channel"`
	Payload          any            `json:"payload"`
	PayloadBytes     []byte         `json:"payload_bytes,omitempty"`
	Amplitude        float64        `json:"amplitude"`
	Source           *string        `json:"source,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Metadata         map[string]any `json:"metadata"`
	Phase            float64        `json:"phase"`
	PropagationCount uint32         `json:"propagation_count"`
}

type wireChannel struct {
	Name     string   `json:"name"`
	Segments []string `json:"segments"`
}

// MarshalJSON encodes w in the transport bridge's wire format.
func (w Wave) MarshalJSON() ([]byte, error) {
	payload := w.Payload
	if w.PayloadBytes != nil {
		payload = nil
	}
	wire := wireWave{
		SchemaVersion:    w.SchemaVersion,
		ID:               w.ID.String(),
		WaveType:         w.Type,
		Channel:          wireChannel{Name: w.Channel.Name(), Segments: w.Channel.Segments()},
		Payload:          payload,
		PayloadBytes:     w.PayloadBytes,
		Amplitude:        w.Amplitude.Value(),
		Source:           w.Source,
		Timestamp:        w.Timestamp,
		Metadata:         w.Metadata,
		Phase:            w.Phase,
		PropagationCount: w.PropagationCount,
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the transport bridge's wire format. Unknown fields
// are ignored (default encoding/json behavior).
func (w *Wave) UnmarshalJSON(data []byte) error {
	var wire wireWave
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode wave: %w", err)
	}
	id, err := uuid.Parse(wire.ID)
	if err != nil {
		return fmt.Errorf("decode wave id: %w", err)
	}
	*w = Wave{
		SchemaVersion:    wire.SchemaVersion,
		ID:               id,
		Type:             wire.WaveType,
		Channel:          NewChannel(wire.Channel.Name),
		Payload:          wire.Payload,
		PayloadBytes:     wire.PayloadBytes,
		Amplitude:        NewAmplitude(wire.Amplitude),
		Source:           wire.Source,
		Timestamp:        wire.Timestamp,
		Metadata:         wire.Metadata,
		Phase:            wire.Phase,
		PropagationCount: wire.PropagationCount,
	}
	return nil
}
