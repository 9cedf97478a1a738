// Package persistence implements the durable log contract: an append-only
// sequence of waves keyed by monotonic index, plus a single overwritten
// snapshot slot, over an embedded ordered key-value store.
package persistence

import (
	"time"

	"github.com/vibenet/medium/internal/wave"
)

// Stats mirrors the broker's cumulative counters as captured in a snapshot.
type Stats struct {
	TotalWaves     uint64 `json:"total_waves"`
	ActiveChannels uint64 `json:"active_channels"`
	TotalVibrators uint64 `json:"total_vibrators"`
}

// Snapshot is the single overwritten value recording the log's recovery
// point and the stats observed at that point.
type Snapshot struct {
	LastIndex uint64    `json:"last_index"`
	Stats     Stats     `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry pairs a persisted wave with the monotonic index it was appended
// under.
type Entry struct {
	Index uint64
	Wave  wave.Wave
}

// DurableLog is the contract the broker's persistence hook is written
// against. Implementations are single-writer on Append: concurrent callers
// must serialize their own Append calls.
type DurableLog interface {
	// Append writes w at the next monotonic index and returns it.
	Append(w wave.Wave) (uint64, error)

	// WriteSnapshot overwrites the single snapshot slot.
	WriteSnapshot(snap Snapshot) error

	// LoadSnapshot returns the current snapshot, or ok=false if none has
	// ever been written.
	LoadSnapshot() (snap Snapshot, ok bool, err error)

	// Recover returns all entries with index >= start, in index order.
	Recover(start uint64) ([]Entry, error)

	// Close releases the underlying store.
	Close() error
}
