package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipdrive/internal/types"
)

func openJournal(t *testing.T, keep int) *BoltJournal {
	t.Helper()
	j, err := NewBoltJournal(JournalConfig{DBPath: filepath.Join(t.TempDir(), "clipdrive.db"), Keep: keep})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordAndRecent(t *testing.T) {
	j := openJournal(t, 10)

	for i := 0; i < 3; i++ {
		require.NoError(t, j.Record(types.JournalEntry{
			Op:     "persist",
			Status: "persisted",
			Format: types.FormatText,
			Volume: fmt.Sprintf("/media/v%d", i),
		}))
	}

	entries, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/media/v2", entries[0].Volume, "newest first")
	assert.Equal(t, "/media/v0", entries[2].Volume)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.WithinDuration(t, time.Now(), e.Time, time.Minute)
	}

	limited, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestJournalPrunesOldest(t *testing.T) {
	j := openJournal(t, 3)

	for i := 0; i < 7; i++ {
		require.NoError(t, j.Record(types.JournalEntry{Op: "restore", Items: i}))
	}

	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{6, 5, 4}, []int{entries[0].Items, entries[1].Items, entries[2].Items})
}

func TestJournalPruneBoundWithLargeEntries(t *testing.T) {
	j := openJournal(t, 20)
	detail := strings.Repeat("x", 300)

	for i := 0; i < 200; i++ {
		require.NoError(t, j.Record(types.JournalEntry{Op: "persist", Status: "failed", Error: detail, Items: i}))
	}

	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	entries, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 20)
	assert.Equal(t, 199, entries[0].Items)
	assert.Equal(t, 180, entries[19].Items)
}

func TestJournalKeepsExplicitIDAndTime(t *testing.T) {
	j := openJournal(t, 0)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(types.JournalEntry{ID: "fixed", Time: at, Op: "clear"}))
	entries, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixed", entries[0].ID)
	assert.True(t, at.Equal(entries[0].Time))
}

func TestJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipdrive.db")
	j, err := NewBoltJournal(JournalConfig{DBPath: path})
	require.NoError(t, err)
	require.NoError(t, j.Record(types.JournalEntry{Op: "persist"}))
	require.NoError(t, j.Close())

	j, err = NewBoltJournal(JournalConfig{DBPath: path})
	require.NoError(t, err)
	defer j.Close()
	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournalLockedByAnotherHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipdrive.db")
	j, err := NewBoltJournal(JournalConfig{DBPath: path})
	require.NoError(t, err)
	defer j.Close()

	_, err = NewBoltJournal(JournalConfig{DBPath: path, Timeout: 50 * time.Millisecond})
	assert.Error(t, err)
}
