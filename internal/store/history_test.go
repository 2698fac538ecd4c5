package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel/internal/bridge"
)

func rec(id string, upload uint64) bridge.ConnectionRecord {
	return bridge.ConnectionRecord{ID: id, Host: id + ".example.com", Upload: upload}
}

func TestHistoryRetainsRecordsAbsentFromSnapshot(t *testing.T) {
	h := NewHistory(100)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h.Apply([]bridge.ConnectionRecord{rec("a", 1), rec("b", 1)}, t0)
	require.Equal(t, 2, h.Len())

	// "a" disappears from the next poll: kept, but closed.
	h.Apply([]bridge.ConnectionRecord{rec("b", 2)}, t0.Add(time.Second))

	entries := h.Entries()
	require.Len(t, entries, 2)

	byID := indexEntries(entries)
	assert.False(t, byID["a"].Active)
	assert.Equal(t, t0.Add(time.Second), byID["a"].ClosedAt)
	assert.True(t, byID["b"].Active)
	assert.True(t, byID["b"].ClosedAt.IsZero())
}

func TestHistoryUpsertsLiveRecords(t *testing.T) {
	h := NewHistory(100)
	t0 := time.Now()

	h.Apply([]bridge.ConnectionRecord{rec("a", 10)}, t0)
	h.Apply([]bridge.ConnectionRecord{rec("a", 999)}, t0.Add(time.Second))

	entries := h.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(999), entries[0].Upload, "byte counters refresh in place")
	assert.Equal(t, t0, entries[0].FirstSeen, "first-seen is sticky")
}

func TestHistoryReopensReappearingID(t *testing.T) {
	h := NewHistory(100)
	t0 := time.Now()

	h.Apply([]bridge.ConnectionRecord{rec("a", 1)}, t0)
	h.Apply(nil, t0.Add(time.Second))
	require.False(t, h.Entries()[0].Active)

	// The id shows up again: a missed poll, not a new connection.
	h.Apply([]bridge.ConnectionRecord{rec("a", 2)}, t0.Add(2*time.Second))

	entries := h.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Active)
	assert.True(t, entries[0].ClosedAt.IsZero())
}

func TestHistoryFirstSeenOrder(t *testing.T) {
	h := NewHistory(100)
	t0 := time.Now()

	h.Apply([]bridge.ConnectionRecord{rec("b", 1)}, t0)
	h.Apply([]bridge.ConnectionRecord{rec("b", 1), rec("a", 1)}, t0.Add(time.Second))

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID, "ordered by first observation, not key")
	assert.Equal(t, "a", entries[1].ID)
}

func TestHistoryMarkAllClosed(t *testing.T) {
	h := NewHistory(100)
	now := time.Now()

	h.Apply([]bridge.ConnectionRecord{rec("a", 1), rec("b", 1)}, now)
	h.MarkAllClosed(now.Add(time.Second))

	for _, e := range h.Entries() {
		assert.False(t, e.Active)
		assert.Equal(t, now.Add(time.Second), e.ClosedAt)
	}
}

func TestHistoryEvictsOldestClosedBeyondCap(t *testing.T) {
	h := NewHistory(3)
	t0 := time.Now()

	// Five connections appear and then all close.
	snapshot := make([]bridge.ConnectionRecord, 5)
	for i := range snapshot {
		snapshot[i] = rec(fmt.Sprintf("c%d", i), 1)
	}
	h.Apply(snapshot, t0)
	h.Apply(nil, t0.Add(time.Second))

	entries := h.Entries()
	require.Len(t, entries, 3, "closed entries capped")
	assert.Equal(t, "c2", entries[0].ID, "oldest closed evicted first")
	assert.Equal(t, "c4", entries[2].ID)
}

func TestHistoryNeverEvictsActiveEntries(t *testing.T) {
	h := NewHistory(2)
	t0 := time.Now()

	// Two stay live, four close.
	h.Apply([]bridge.ConnectionRecord{
		rec("live1", 1), rec("live2", 1),
		rec("x1", 1), rec("x2", 1), rec("x3", 1), rec("x4", 1),
	}, t0)
	h.Apply([]bridge.ConnectionRecord{rec("live1", 2), rec("live2", 2)}, t0.Add(time.Second))

	entries := h.Entries()
	byID := indexEntries(entries)
	require.Contains(t, byID, "live1")
	require.Contains(t, byID, "live2")
	assert.True(t, byID["live1"].Active)
	assert.True(t, byID["live2"].Active)

	closed := 0
	for _, e := range entries {
		if !e.Active {
			closed++
		}
	}
	assert.Equal(t, 2, closed)
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(100)
	now := time.Now()

	h.Apply([]bridge.ConnectionRecord{rec("a", 1)}, now)
	h.Clear()
	assert.Equal(t, 0, h.Len())

	// Polling continues normally afterwards.
	h.Apply([]bridge.ConnectionRecord{rec("b", 1)}, now)
	assert.Equal(t, 1, h.Len())
}

func indexEntries(entries []HistoryEntry) map[string]HistoryEntry {
	out := make(map[string]HistoryEntry, len(entries))
	for _, e := range entries {
		out[e.ID] = e
	}
	return out
}
