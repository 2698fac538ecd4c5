// Package monitor contains the schedulers that keep the store consistent
// with the external engine: the adaptive status probe, the startup
// reconciler, the traffic sampler and the connection registry. Each
// scheduler owns its timers and is the sole writer for its store fields.
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

// Adaptive probe intervals and the stability threshold that switches
// between them.
const (
	FastInterval       = 1 * time.Second
	SlowInterval       = 3 * time.Second
	StabilityThreshold = 5

	probeTimeout = 5 * time.Second
)

// StatusProbe polls the engine running-state on an adaptive interval:
// FAST while the observed value keeps changing, SLOW once it has been
// stable for StabilityThreshold consecutive ticks. The loop re-arms itself
// after each probe's handler completes, so a slow probe can never overlap
// the next one.
type StatusProbe struct {
	client bridge.Client
	store  *store.Store
	clock  clock.Clock
	log    *zap.Logger

	fast      time.Duration
	slow      time.Duration
	threshold int

	mu          sync.Mutex
	active      bool
	stopCh      chan struct{}
	interval    time.Duration
	stableCount int
	lastRunning *bool
}

// StatusProbeConfig holds configuration for a StatusProbe.
type StatusProbeConfig struct {
	Client bridge.Client
	Store  *store.Store
	Clock  clock.Clock
	Log    *zap.Logger

	Fast      time.Duration
	Slow      time.Duration
	Threshold int
}

// NewStatusProbe creates a stopped probe scheduler.
func NewStatusProbe(cfg StatusProbeConfig) *StatusProbe {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Fast <= 0 {
		cfg.Fast = FastInterval
	}
	if cfg.Slow <= 0 {
		cfg.Slow = SlowInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = StabilityThreshold
	}
	return &StatusProbe{
		client:    cfg.Client,
		store:     cfg.Store,
		clock:     cfg.Clock,
		log:       cfg.Log,
		fast:      cfg.Fast,
		slow:      cfg.Slow,
		threshold: cfg.Threshold,
		interval:  cfg.Fast,
	}
}

// Start launches the polling loop. It must not be called before the startup
// reconciler asserts backend readiness. Idempotent while running.
func (p *StatusProbe) Start(ctx context.Context) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go p.loop(ctx, stopCh)
}

// Stop cancels the pending timer synchronously. Idempotent.
func (p *StatusProbe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.active = false
	close(p.stopCh)
}

func (p *StatusProbe) loop(ctx context.Context, stopCh chan struct{}) {
	for {
		p.step(ctx)

		// Re-read the interval after the probe resolved; the state
		// machine may have switched it mid-flight.
		p.mu.Lock()
		d := p.interval
		p.mu.Unlock()

		timer := p.clock.Timer(d)
		select {
		case <-timer.C:
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// step performs one probe and advances the adaptive state machine. A probe
// error counts as running=false for interval adaptation but leaves the
// store's last good status in place; the loop retries on the next tick.
func (p *StatusProbe) step(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	status, err := p.client.GetStatus(probeCtx)
	cancel()

	observedRunning := err == nil && status.Running
	wasStopped := p.observe(observedRunning)

	if err != nil {
		p.log.Warn("status probe failed", zap.Error(err))
		return
	}

	p.store.SetStatus(*status)

	// One-shot run-mode fetch on a stopped→running transition.
	if wasStopped && status.Running {
		go p.fetchRunMode(ctx)
	}
}

// observe updates the stability counter and interval for one observation.
// It returns true when the previous observation was not running (or there
// was none), i.e. when a running observation is a fresh transition.
func (p *StatusProbe) observe(running bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasStopped := p.lastRunning == nil || !*p.lastRunning

	if p.lastRunning == nil || *p.lastRunning != running {
		p.stableCount = 0
		p.interval = p.fast
		v := running
		p.lastRunning = &v
		return wasStopped
	}

	if p.stableCount < p.threshold {
		p.stableCount++
	}
	if p.stableCount >= p.threshold {
		p.interval = p.slow
	}
	return wasStopped
}

func (p *StatusProbe) fetchRunMode(ctx context.Context) {
	modeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	mode, err := p.client.GetRunMode(modeCtx)
	if err != nil {
		p.log.Warn("run mode fetch failed", zap.Error(err))
		return
	}
	p.store.SetRunMode(mode)
}

// Interval returns the scheduler's current probe interval.
func (p *StatusProbe) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// StableCount returns the current stability counter value.
func (p *StatusProbe) StableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stableCount
}
