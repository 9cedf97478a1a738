package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibenet/medium/internal/wave"
)

func openTestLog(t *testing.T) *BoltLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medium.db")
	log, err := OpenBoltLog(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestBoltLogAppendAssignsMonotonicIndicesStartingAtZero(t *testing.T) {
	log := openTestLog(t)

	w1 := wave.NewBuilder(wave.NewChannel("orders.created")).Build()
	idx1, err := log.Append(w1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx1)

	w2 := wave.NewBuilder(wave.NewChannel("orders.created")).Build()
	idx2, err := log.Append(w2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, idx2)
}

func TestBoltLogLoadSnapshotReportsAbsence(t *testing.T) {
	log := openTestLog(t)

	_, ok, err := log.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltLogWriteAndLoadSnapshotRoundTrips(t *testing.T) {
	log := openTestLog(t)

	snap := Snapshot{
		LastIndex: 7,
		Stats:     Stats{TotalWaves: 8, ActiveChannels: 2, TotalVibrators: 0},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, log.WriteSnapshot(snap))

	got, ok, err := log.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.LastIndex, got.LastIndex)
	assert.Equal(t, snap.Stats, got.Stats)
	assert.True(t, snap.Timestamp.Equal(got.Timestamp))
}

func TestBoltLogSnapshotIsOverwrittenNotAppended(t *testing.T) {
	log := openTestLog(t)

	require.NoError(t, log.WriteSnapshot(Snapshot{LastIndex: 1}))
	require.NoError(t, log.WriteSnapshot(Snapshot{LastIndex: 2}))

	got, ok, err := log.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, got.LastIndex)
}

func TestBoltLogRecoverReturnsEntriesFromStartInOrder(t *testing.T) {
	log := openTestLog(t)

	for i := 0; i < 5; i++ {
		_, err := log.Append(wave.NewBuilder(wave.NewChannel("orders.created")).Build())
		require.NoError(t, err)
	}

	entries, err := log.Recover(2)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.EqualValues(t, 2+i, e.Index)
	}
}

func TestBoltLogRecoverFromZeroReturnsEverything(t *testing.T) {
	log := openTestLog(t)

	for i := 0; i < 3; i++ {
		_, err := log.Append(wave.NewBuilder(wave.NewChannel("orders.created")).Build())
		require.NoError(t, err)
	}

	entries, err := log.Recover(0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
