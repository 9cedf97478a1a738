package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vibenet/medium/internal/wave"
)

func buildWave(channel string, amplitude float64, hops uint32) wave.Wave {
	w := wave.NewBuilder(wave.NewChannel(channel)).Amplitude(amplitude).Build()
	w.PropagationCount = hops
	return w
}

func TestInterferenceConstructiveOnEqualHops(t *testing.T) {
	w1 := buildWave("test", 0.5, 2)
	w2 := buildWave("test", 0.4, 2)

	kind, amp := Interference(w1, w2)

	assert.Equal(t, Constructive, kind)
	assert.InDelta(t, 0.9, amp.Value(), 1e-9)
}

func TestInterferenceConstructiveCapsAtOne(t *testing.T) {
	w1 := buildWave("test", 0.9, 0)
	w2 := buildWave("test", 0.8, 0)

	kind, amp := Interference(w1, w2)

	assert.Equal(t, Constructive, kind)
	assert.Equal(t, 1.0, amp.Value())
}

func TestInterferenceDestructiveOnDifferentHops(t *testing.T) {
	w1 := buildWave("test", 0.8, 0)
	w2 := buildWave("test", 0.3, 3)

	kind, amp := Interference(w1, w2)

	assert.Equal(t, Destructive, kind)
	assert.InDelta(t, 0.5, amp.Value(), 1e-9)
}

func TestResonanceClassification(t *testing.T) {
	w := buildWave("test.resonance", 1.0, 0)
	r := Resonance(w, 0.5)
	assert.Contains(t, []ResonanceStrength{Strong, Moderate, Weak}, r)
}

func TestDetectPatternsNoneWithoutHistory(t *testing.T) {
	d := NewDetector()
	ch := wave.NewChannel("test")
	w := buildWave("test", 0.5, 0)

	assert.Equal(t, NoPattern, d.DetectPatterns(ch, w))
}

func TestDetectPatternsStandingWaveOnRepeatedConstructiveInterference(t *testing.T) {
	d := NewDetector()
	ch := wave.NewChannel("test")

	var last PatternKind
	for i := 0; i < 10; i++ {
		last = d.DetectPatterns(ch, buildWave("test", 0.5, 0))
	}

	assert.Equal(t, StandingWave, last)
}

func TestDetectPatternsTracksHistoryPerChannel(t *testing.T) {
	d := NewDetector()
	chA := wave.NewChannel("a")
	chB := wave.NewChannel("b")

	for i := 0; i < 10; i++ {
		d.DetectPatterns(chA, buildWave("a", 0.5, 0))
	}
	// Channel b starts fresh, unaffected by a's history.
	assert.Equal(t, NoPattern, d.DetectPatterns(chB, buildWave("b", 0.5, 0)))
}
