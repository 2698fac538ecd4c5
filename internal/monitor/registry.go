package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"kestrel/internal/bridge"
	"kestrel/internal/store"
)

// ConnInterval is the default connection poll cadence, deliberately coarser
// than the traffic tick.
const ConnInterval = 2500 * time.Millisecond

// ConnRegistry polls the live connection set and reconciles it against the
// store's request history log. Close commands go through the bridge and are
// never reflected locally; the next authoritative poll observes the result,
// so a silently failed close never produces a false-closed record.
type ConnRegistry struct {
	client bridge.Client
	store  *store.Store
	clock  clock.Clock
	log    *zap.Logger

	every time.Duration

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
	sub    *store.StoreSubscription
}

// ConnRegistryConfig holds configuration for a ConnRegistry.
type ConnRegistryConfig struct {
	Client bridge.Client
	Store  *store.Store
	Clock  clock.Clock
	Log    *zap.Logger

	Interval time.Duration
}

// NewConnRegistry creates a stopped registry.
func NewConnRegistry(cfg ConnRegistryConfig) *ConnRegistry {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = ConnInterval
	}
	return &ConnRegistry{
		client: cfg.Client,
		store:  cfg.Store,
		clock:  cfg.Clock,
		log:    cfg.Log,
		every:  cfg.Interval,
	}
}

// BindRunning ties the registry's lifecycle to the store's running flag.
func (r *ConnRegistry) BindRunning(ctx context.Context) {
	r.sub = r.store.Subscribe(
		func(s *store.Store) interface{} { return s.Running() },
		func(old, new interface{}) bool { return old == new },
		func(v interface{}) {
			if v.(bool) {
				r.Start(ctx)
			} else {
				r.Stop()
			}
		},
	)
	if r.store.Running() {
		r.Start(ctx)
	}
}

// Start launches the poll loop. Idempotent while running.
func (r *ConnRegistry) Start(ctx context.Context) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	go r.loop(ctx, stopCh)
}

// Stop cancels the poll loop synchronously. Idempotent.
func (r *ConnRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.active = false
	close(r.stopCh)
}

// Close stops the registry and detaches it from the store.
func (r *ConnRegistry) Close() {
	r.Stop()
	if r.sub != nil {
		r.sub.Close()
	}
}

func (r *ConnRegistry) loop(ctx context.Context, stopCh chan struct{}) {
	// Poll once right away so the view fills within one cycle of the
	// engine starting, then settle into the regular cadence.
	r.poll(ctx)

	ticker := r.clock.Ticker(r.every)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.store.Running() {
				continue
			}
			r.poll(ctx)
		}
	}
}

// poll fetches one snapshot and applies it. Errors are contained: logged
// and retried on the next tick, never surfaced to the UI tree.
func (r *ConnRegistry) poll(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	snapshot, err := r.client.GetConnections(fetchCtx)
	if err != nil {
		r.log.Debug("connection poll failed", zap.Error(err))
		return
	}
	r.store.ApplyConnections(snapshot, r.clock.Now())
}
