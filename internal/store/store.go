// Package store holds the central reactive state container shared by every
// scheduler and view. Each field group has exactly one designated writer
// (the status probe writes EngineStatus, the traffic sampler writes the
// ring, the connection registry writes live/history); everything else only
// reads. Views observe changes through explicit subscriptions with equality
// checks, decoupled from any rendering framework.
package store

import (
	"reflect"
	"sync"
	"time"

	"kestrel/internal/bridge"
)

// LiveStats are aggregates recomputed from the current live snapshot only,
// never from history.
type LiveStats struct {
	Connections   int
	TotalUpload   uint64
	TotalDownload uint64
	Processes     int
}

// Selector derives a value from the store. Selectors must be pure reads.
type Selector func(*Store) interface{}

// Equals compares two selector outputs; a subscription only fires when it
// returns false.
type Equals func(old, new interface{}) bool

// DeepEquals is the default subscription equality check.
func DeepEquals(old, new interface{}) bool {
	return reflect.DeepEqual(old, new)
}

type subscriber struct {
	selector Selector
	equals   Equals
	callback func(interface{})
	last     interface{}
}

// Store is the central state container.
type Store struct {
	mu sync.RWMutex

	status  bridge.EngineStatus
	ring    *Ring
	history *History
	live    []bridge.ConnectionRecord
	stats   LiveStats
	now     time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]*subscriber

	// notifyMu serializes notify passes so the compare-and-store on each
	// subscriber's last value is atomic across writer goroutines.
	notifyMu sync.Mutex
}

// Options configures a Store.
type Options struct {
	RingCapacity    int
	ClosedRetention int
}

// New creates an empty store.
func New(opts Options) *Store {
	return &Store{
		ring:    NewRing(opts.RingCapacity),
		history: NewHistory(opts.ClosedRetention),
		subs:    make(map[int]*subscriber),
	}
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

// StoreSubscription is a handle to one store observer.
type StoreSubscription struct {
	store *Store
	id    int
	once  sync.Once
}

// Close unregisters the observer. Safe to call more than once.
func (s *StoreSubscription) Close() {
	s.once.Do(func() {
		s.store.subMu.Lock()
		delete(s.store.subs, s.id)
		s.store.subMu.Unlock()
	})
}

// Subscribe registers callback to run whenever selector's output changes
// according to equals (DeepEquals when nil). The callback runs on the
// writer's goroutine while notifications are serialized; it must not block
// and must not mutate the store synchronously.
func (s *Store) Subscribe(selector Selector, equals Equals, callback func(interface{})) *StoreSubscription {
	if equals == nil {
		equals = DeepEquals
	}
	sub := &subscriber{
		selector: selector,
		equals:   equals,
		callback: callback,
		last:     selector(s),
	}

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subMu.Unlock()

	return &StoreSubscription{store: s, id: id}
}

// notify re-evaluates every subscription after a mutation. Writers on
// different goroutines call this concurrently, so the whole
// evaluate/compare/store pass runs under notifyMu; subMu alone is not
// enough because it is released before sub.last is touched.
func (s *Store) notify() {
	s.subMu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, sub := range subs {
		next := sub.selector(s)
		if !sub.equals(sub.last, next) {
			sub.last = next
			sub.callback(next)
		}
	}
}

// ─── Writers ────────────────────────────────────────────────────────────────

// SetStatus replaces the engine status. Owned by the status probe scheduler
// and the push-event handler. A transition to running=false zeroes the
// traffic ring and the live set so views never show stale nonzero data;
// history is untouched apart from its entries being re-classified closed.
func (s *Store) SetStatus(status bridge.EngineStatus) {
	s.mu.Lock()
	s.status = status
	if !status.Running {
		s.ring.Reset()
		s.live = nil
		s.stats = LiveStats{}
		// The shared tick is zero until the first clock tick of the
		// session; a zero ClosedAt would read as still active.
		closedAt := s.now
		if closedAt.IsZero() {
			closedAt = time.Now()
		}
		s.history.MarkAllClosed(closedAt)
	}
	s.mu.Unlock()
	s.notify()
}

// SetRunMode updates only the routing mode, for the one-shot fetch after a
// stopped→running transition.
func (s *Store) SetRunMode(mode bridge.RunMode) {
	s.mu.Lock()
	s.status.Mode = mode
	s.mu.Unlock()
	s.notify()
}

// PushTraffic appends one traffic sample. Owned by the traffic sampler.
func (s *Store) PushTraffic(sample TrafficSample) {
	s.mu.Lock()
	s.ring.Push(sample)
	s.mu.Unlock()
	s.notify()
}

// SetNow advances the shared "now" used by relative-duration displays.
// Owned by the traffic sampler's clock tick.
func (s *Store) SetNow(t time.Time) {
	s.mu.Lock()
	s.now = t
	s.mu.Unlock()
	s.notify()
}

// ApplyConnections reconciles one live snapshot into the live set and the
// history log, and recomputes aggregates from the snapshot alone. Owned by
// the connection registry.
func (s *Store) ApplyConnections(snapshot []bridge.ConnectionRecord, now time.Time) {
	s.mu.Lock()
	s.live = snapshot
	s.history.Apply(snapshot, now)

	stats := LiveStats{Connections: len(snapshot)}
	procs := make(map[string]struct{})
	for i := range snapshot {
		stats.TotalUpload += snapshot[i].Upload
		stats.TotalDownload += snapshot[i].Download
		if p := snapshot[i].Process; p != "" {
			procs[p] = struct{}{}
		}
	}
	stats.Processes = len(procs)
	s.stats = stats
	s.mu.Unlock()
	s.notify()
}

// ClearHistory empties the history log. Explicit user action only; the live
// snapshot and aggregates are unaffected.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	s.history.Clear()
	s.mu.Unlock()
	s.notify()
}

// ─── Readers ────────────────────────────────────────────────────────────────

// Status returns the current engine status.
func (s *Store) Status() bridge.EngineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Running reports the engine running flag at this moment. Loops must read
// it when they act, not when they were scheduled.
func (s *Store) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Running
}

// TrafficSamples returns the chart window, oldest first, zero-padded to the
// ring capacity.
func (s *Store) TrafficSamples() []TrafficSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Samples()
}

// Live returns a copy of the latest live connection snapshot.
func (s *Store) Live() []bridge.ConnectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bridge.ConnectionRecord, len(s.live))
	copy(out, s.live)
	return out
}

// History returns a copy of the request history log in first-seen order.
func (s *Store) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Entries()
}

// Stats returns aggregates over the current live snapshot.
func (s *Store) Stats() LiveStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Now returns the shared clock-tick timestamp.
func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}
