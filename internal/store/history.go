package store

import (
	"time"

	"kestrel/internal/bridge"
)

// HistoryEntry is one connection in the request history log. An entry is
// active iff its id appeared in the latest live snapshot; entries absent
// from a snapshot are re-classified closed but never deleted by polls.
type HistoryEntry struct {
	bridge.ConnectionRecord

	Active    bool
	FirstSeen time.Time
	ClosedAt  time.Time // zero while active
}

// DefaultClosedRetention is the default cap on retained closed entries.
// The source behavior left history growth unbounded; a cap on closed
// records keeps long sessions bounded while never evicting live ones.
const DefaultClosedRetention = 1000

// History is the request history log, keyed by connection id and ordered by
// first observation. Not safe for concurrent use; the Store guards it.
type History struct {
	entries      map[string]*HistoryEntry
	order        []string
	closedLimit  int
	closedCount  int
}

// NewHistory creates an empty history log retaining up to closedLimit
// closed entries.
func NewHistory(closedLimit int) *History {
	if closedLimit <= 0 {
		closedLimit = DefaultClosedRetention
	}
	return &History{
		entries:     make(map[string]*HistoryEntry),
		closedLimit: closedLimit,
	}
}

// Apply reconciles one live snapshot against the log: records present in the
// snapshot are upserted (bytes, chains and rule may change as the engine
// re-evaluates), records absent from it are marked closed.
func (h *History) Apply(snapshot []bridge.ConnectionRecord, now time.Time) {
	liveIDs := make(map[string]struct{}, len(snapshot))
	for i := range snapshot {
		rec := snapshot[i]
		liveIDs[rec.ID] = struct{}{}

		if existing, ok := h.entries[rec.ID]; ok {
			if !existing.Active {
				// The engine re-used nothing: a previously closed id
				// showing up again means it was still live; reopen it.
				existing.Active = true
				existing.ClosedAt = time.Time{}
				h.closedCount--
			}
			existing.ConnectionRecord = rec
			continue
		}

		h.entries[rec.ID] = &HistoryEntry{
			ConnectionRecord: rec,
			Active:           true,
			FirstSeen:        now,
		}
		h.order = append(h.order, rec.ID)
	}

	for _, entry := range h.entries {
		if !entry.Active {
			continue
		}
		if _, live := liveIDs[entry.ID]; !live {
			entry.Active = false
			entry.ClosedAt = now
			h.closedCount++
		}
	}

	h.evictClosed()
}

// MarkAllClosed closes every active entry, used when the engine stops.
func (h *History) MarkAllClosed(now time.Time) {
	for _, entry := range h.entries {
		if entry.Active {
			entry.Active = false
			entry.ClosedAt = now
			h.closedCount++
		}
	}
	h.evictClosed()
}

// evictClosed drops the oldest closed entries beyond the retention cap.
// Active entries are never evicted.
func (h *History) evictClosed() {
	if h.closedCount <= h.closedLimit {
		return
	}
	kept := h.order[:0]
	for _, id := range h.order {
		entry := h.entries[id]
		if !entry.Active && h.closedCount > h.closedLimit {
			delete(h.entries, id)
			h.closedCount--
			continue
		}
		kept = append(kept, id)
	}
	h.order = kept
}

// Entries returns a copy of the log in first-observation order.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.entries[id])
	}
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.order) }

// Clear empties the log. Only the user triggers this; polls never do.
func (h *History) Clear() {
	h.entries = make(map[string]*HistoryEntry)
	h.order = nil
	h.closedCount = 0
}
