// Package physics implements physicsLite: pairwise interference and
// resonance classifiers over wave attributes, used by higher-level
// observers (not the broker's dispatch path itself).
package physics

import (
	"math"
	"sync"

	"github.com/vibenet/medium/internal/wave"
)

// InterferenceKind classifies how two waves combine.
type InterferenceKind string

const (
	Constructive InterferenceKind = "Constructive"
	Destructive  InterferenceKind = "Destructive"
)

// ResonanceStrength classifies how closely a wave's estimated frequency
// matches a target frequency.
type ResonanceStrength string

const (
	Strong   ResonanceStrength = "Strong"
	Moderate ResonanceStrength = "Moderate"
	Weak     ResonanceStrength = "Weak"
)

// PatternKind classifies a run of interference history.
type PatternKind string

const (
	NoPattern    PatternKind = ""
	StandingWave PatternKind = "StandingWave"
	Cancellation PatternKind = "Cancellation"
)

// interferenceThreshold mirrors the fraction of history that must agree
// before DetectPatterns calls it a pattern.
const interferenceThreshold = 0.5

// maxHistory and trimTo bound per-channel memory: once history exceeds
// maxHistory entries, the oldest trimTo are dropped.
const (
	maxHistory = 100
	trimTo     = 50
)

// Interference computes |hop_count(w1) - hop_count(w2)|; equal hop counts
// (difference < 0.5) are Constructive with amplitude min(a1+a2, 1);
// otherwise Destructive with amplitude |a1-a2|.
func Interference(w1, w2 wave.Wave) (InterferenceKind, wave.Amplitude) {
	a1 := w1.Amplitude.Value()
	a2 := w2.Amplitude.Value()
	hopDiff := math.Abs(float64(w1.PropagationCount) - float64(w2.PropagationCount))

	if hopDiff < 0.5 {
		sum := a1 + a2
		if sum > 1 {
			sum = 1
		}
		return Constructive, wave.NewAmplitude(sum)
	}
	return Destructive, wave.NewAmplitude(math.Abs(a1 - a2))
}

// Resonance estimates a wave's frequency from its channel name's byte sum
// modulo 1000, and classifies how close that is to target.
func Resonance(w wave.Wave, target float64) ResonanceStrength {
	est := estimateFrequency(w)
	diff := math.Abs(est - target)

	switch {
	case diff < 0.1:
		return Strong
	case diff < 0.3:
		return Moderate
	default:
		return Weak
	}
}

func estimateFrequency(w wave.Wave) float64 {
	name := w.Channel.Name()
	var sum uint64
	for i := 0; i < len(name); i++ {
		sum += uint64(name[i])
	}
	return float64(sum%1000) / 1000.0
}

// Detector maintains per-channel interference history for DetectPatterns.
// Safe for concurrent use.
type Detector struct {
	mu      sync.Mutex
	history map[string][]wave.Wave
}

// NewDetector returns an empty Detector.
func NewDetector() *Detector {
	return &Detector{history: make(map[string][]wave.Wave)}
}

// DetectPatterns classifies w against the channel's interference history,
// appends w to that history (trimming it if it has grown past maxHistory),
// and returns StandingWave, Cancellation, or NoPattern.
func (d *Detector) DetectPatterns(ch wave.Channel, w wave.Wave) PatternKind {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := ch.Name()
	history := d.history[name]
	if len(history) > maxHistory {
		history = history[trimTo:]
	}

	var constructive, destructive int
	for _, hist := range history {
		kind, _ := Interference(w, hist)
		if kind == Constructive {
			constructive++
		} else {
			destructive++
		}
	}

	history = append(history, w)
	d.history[name] = history

	total := constructive + destructive
	threshold := int(math.Ceil(interferenceThreshold * float64(total)))

	switch {
	case constructive > destructive && constructive >= threshold && constructive > 5:
		return StandingWave
	case destructive > constructive && destructive >= threshold && destructive > 5:
		return Cancellation
	default:
		return NoPattern
	}
}
