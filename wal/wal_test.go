package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/findhub/store"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "ingest.wal"))
}

func testEntry(vecID uint32) Entry {
	return Entry{
		VecID:  vecID,
		Vector: []float32{1, 2, 3},
		Record: store.Record{
			ID:          "rec",
			VecID:       vecID,
			Description: "red backpack",
			Location:    "library",
			Tags:        []string{"nike"},
			Timestamp:   "2026-08-01T10:00:00Z",
		},
	}
}

func TestJournal(t *testing.T) {
	t.Run("MissingFileReplaysEmpty", func(t *testing.T) {
		j := newTestJournal(t)
		entries, err := j.Replay()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("AppendReplayRoundTrip", func(t *testing.T) {
		j := newTestJournal(t)
		require.NoError(t, j.Append(testEntry(0)))
		require.NoError(t, j.Append(testEntry(1)))

		entries, err := j.Replay()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, testEntry(0), entries[0])
		assert.Equal(t, testEntry(1), entries[1])
	})

	t.Run("TornTailIsDropped", func(t *testing.T) {
		j := newTestJournal(t)
		require.NoError(t, j.Append(testEntry(0)))
		require.NoError(t, j.Append(testEntry(1)))

		// Simulate a crash mid-append: chop bytes off the last frame.
		info, err := os.Stat(j.Path())
		require.NoError(t, err)
		require.NoError(t, os.Truncate(j.Path(), info.Size()-5))

		entries, err := j.Replay()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, uint32(0), entries[0].VecID)
	})

	t.Run("CorruptFrameStopsReplay", func(t *testing.T) {
		j := newTestJournal(t)
		require.NoError(t, j.Append(testEntry(0)))
		require.NoError(t, j.Append(testEntry(1)))

		b, err := os.ReadFile(j.Path())
		require.NoError(t, err)
		b[len(b)-3] ^= 0xFF
		require.NoError(t, os.WriteFile(j.Path(), b, 0644))

		entries, err := j.Replay()
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("Reset", func(t *testing.T) {
		j := newTestJournal(t)
		require.NoError(t, j.Append(testEntry(0)))
		require.NoError(t, j.Reset())

		entries, err := j.Replay()
		require.NoError(t, err)
		assert.Empty(t, entries)

		// Reset on a missing file is fine.
		j2 := newTestJournal(t)
		assert.NoError(t, j2.Reset())
	})
}
