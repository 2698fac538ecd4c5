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

// Default sampler cadences.
const (
	TrafficInterval = 1500 * time.Millisecond
	ClockInterval   = 1 * time.Second
)

// TrafficSampler runs two independent tickers while the engine is running:
// a traffic tick feeding the store's ring buffer and a clock tick advancing
// the shared "now" used by relative-duration displays. Both are cancelled
// immediately when running flips false and re-armed without duplication
// when it flips true again.
type TrafficSampler struct {
	client bridge.Client
	store  *store.Store
	clock  clock.Clock
	log    *zap.Logger

	trafficEvery time.Duration
	clockEvery   time.Duration

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
	sub    *store.StoreSubscription
}

// TrafficSamplerConfig holds configuration for a TrafficSampler.
type TrafficSamplerConfig struct {
	Client bridge.Client
	Store  *store.Store
	Clock  clock.Clock
	Log    *zap.Logger

	TrafficInterval time.Duration
	ClockInterval   time.Duration
}

// NewTrafficSampler creates a stopped sampler.
func NewTrafficSampler(cfg TrafficSamplerConfig) *TrafficSampler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.TrafficInterval <= 0 {
		cfg.TrafficInterval = TrafficInterval
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = ClockInterval
	}
	return &TrafficSampler{
		client:       cfg.Client,
		store:        cfg.Store,
		clock:        cfg.Clock,
		log:          cfg.Log,
		trafficEvery: cfg.TrafficInterval,
		clockEvery:   cfg.ClockInterval,
	}
}

// BindRunning ties the sampler's lifecycle to the store's running flag.
func (t *TrafficSampler) BindRunning(ctx context.Context) {
	t.sub = t.store.Subscribe(
		func(s *store.Store) interface{} { return s.Running() },
		func(old, new interface{}) bool { return old == new },
		func(v interface{}) {
			if v.(bool) {
				t.Start(ctx)
			} else {
				t.Stop()
			}
		},
	)
	if t.store.Running() {
		t.Start(ctx)
	}
}

// Start launches both tickers. Idempotent while running.
func (t *TrafficSampler) Start(ctx context.Context) {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return
	}
	t.active = true
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh
	t.mu.Unlock()

	go t.trafficLoop(ctx, stopCh)
	go t.clockLoop(stopCh)
}

// Stop cancels both tickers synchronously. Idempotent.
func (t *TrafficSampler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.active = false
	close(t.stopCh)
}

// Close stops the sampler and detaches it from the store.
func (t *TrafficSampler) Close() {
	t.Stop()
	if t.sub != nil {
		t.sub.Close()
	}
}

func (t *TrafficSampler) trafficLoop(ctx context.Context, stopCh chan struct{}) {
	ticker := t.clock.Ticker(t.trafficEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Re-check at the moment we act, not when scheduled.
			if !t.store.Running() {
				continue
			}
			t.sampleTraffic(ctx)
		}
	}
}

func (t *TrafficSampler) sampleTraffic(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	traffic, err := t.client.GetTraffic(fetchCtx)
	if err != nil {
		t.log.Debug("traffic fetch failed", zap.Error(err))
		return
	}
	t.store.PushTraffic(store.TrafficSample{
		Up:        traffic.Up,
		Down:      traffic.Down,
		Timestamp: t.clock.Now(),
	})
}

func (t *TrafficSampler) clockLoop(stopCh chan struct{}) {
	ticker := t.clock.Ticker(t.clockEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.store.SetNow(t.clock.Now())
		}
	}
}
