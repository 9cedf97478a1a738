package persistence

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vibenet/medium/internal/wave"
)

var (
	logBucket  = []byte("log")
	metaBucket = []byte("meta")

	lastIndexKey = []byte("last_index")
	snapshotKey  = []byte("snapshot")
)

// BoltLog implements DurableLog over a single go.etcd.io/bbolt database
// file with two top-level buckets: "log" (index -> serialized wave) and
// "meta" (last_index, snapshot).
type BoltLog struct {
	db *bolt.DB
	mu sync.Mutex
}

// OpenBoltLog opens (creating if absent) a bbolt database at path and
// ensures the log/meta buckets exist.
func OpenBoltLog(path string) (*BoltLog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("persistence: open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(logBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: init buckets: %w", err)
	}

	return &BoltLog{db: db}, nil
}

func encodeIndex(index uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	return buf
}

func decodeIndex(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// Append assigns the next index (last_index+1, or 0 if none written yet),
// writes the serialized wave under "log", and advances "last_index".
// Append serializes callers under its own mutex in addition to bbolt's
// single-writer transaction lock, matching the contract's single-writer
// append path.
func (b *BoltLog) Append(w wave.Wave) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var index uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if raw := meta.Get(lastIndexKey); raw != nil {
			index = decodeIndex(raw) + 1
		}

		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshal wave: %w", err)
		}

		if err := tx.Bucket(logBucket).Put(encodeIndex(index), data); err != nil {
			return err
		}
		return meta.Put(lastIndexKey, encodeIndex(index))
	})
	if err != nil {
		return 0, fmt.Errorf("persistence: append: %w", err)
	}
	return index, nil
}

// WriteSnapshot overwrites the single snapshot slot with snap.
func (b *BoltLog) WriteSnapshot(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(snapshotKey, data)
	})
	if err != nil {
		return fmt.Errorf("persistence: write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the current snapshot, or ok=false if none exists.
func (b *BoltLog) LoadSnapshot() (Snapshot, bool, error) {
	var snap Snapshot
	var found bool

	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get(snapshotKey)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &snap)
	})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("persistence: load snapshot: %w", err)
	}
	return snap, found, nil
}

// Recover returns all entries with index >= start, in ascending index
// order.
func (b *BoltLog) Recover(start uint64) ([]Entry, error) {
	var entries []Entry

	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(logBucket).Cursor()
		for k, v := c.Seek(encodeIndex(start)); k != nil; k, v = c.Next() {
			var w wave.Wave
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("unmarshal wave at index %d: %w", decodeIndex(k), err)
			}
			entries = append(entries, Entry{Index: decodeIndex(k), Wave: w})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: recover: %w", err)
	}
	return entries, nil
}

// Close releases the underlying bbolt database file.
func (b *BoltLog) Close() error {
	return b.db.Close()
}
