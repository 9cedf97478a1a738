package wave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderDefaults(t *testing.T) {
	w := NewBuilder(NewChannel("test.channel")).Build()

	assert.Equal(t, "test.channel", w.Channel.Name())
	assert.Equal(t, Event, w.Type)
	assert.Equal(t, DefaultAmplitude, w.Amplitude)
	assert.Equal(t, CurrentSchemaVersion, w.SchemaVersion)
	assert.Equal(t, map[string]any{}, w.Payload)
	assert.Zero(t, w.PropagationCount)
	assert.Zero(t, w.Phase)
}

func TestBuilderWithFields(t *testing.T) {
	w := NewBuilder(NewChannel("test.channel")).
		Payload(map[string]any{"data": "test"}).
		Type(Command).
		Amplitude(0.8).
		Source("service-1").
		Build()

	assert.Equal(t, "test.channel", w.Channel.Name())
	assert.Equal(t, Command, w.Type)
	assert.Equal(t, "service-1", *w.Source)
	assert.InDelta(t, 0.8, w.Amplitude.Value(), 1e-9)
}

func TestBuilderOpaquePayloadOnlyLeavesStructuredPayloadNil(t *testing.T) {
	w := NewBuilder(NewChannel("test")).PayloadBytes([]byte("raw")).Build()
	assert.Nil(t, w.Payload)
	assert.Equal(t, []byte("raw"), w.PayloadBytes)
}

func TestBuilderAssignsFreshUUIDsPerBuild(t *testing.T) {
	b := NewBuilder(NewChannel("test"))
	w1 := b.Build()
	w2 := b.Build()
	assert.NotEqual(t, w1.ID, w2.ID)
}
