package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kestrel/internal/bridge"
	"kestrel/internal/store"
	pkgerrors "kestrel/pkg/errors"
)

// NotifyFunc delivers a one-shot user notification.
type NotifyFunc func(msg string, isError bool)

// Reconciler guarantees the startup sequence (load settings → load status →
// auto-start engine if stopped → one-shot post-start checks) runs exactly
// once, even though it can be triggered both by the backend-ready push event
// and by a direct probe that detects an already-warm backend after a panel
// reload. A latch set synchronously before any asynchronous work makes the
// racing triggers idempotent.
type Reconciler struct {
	client bridge.Client
	events bridge.EventSource
	store  *store.Store
	log    *zap.Logger

	loadSettings    func(ctx context.Context) error
	postStartChecks func(ctx context.Context)
	onReady         func()
	notify          NotifyFunc
	onElevation     func(err error)

	mu      sync.Mutex
	latched bool
	sub     *bridge.Subscription
}

// ReconcilerConfig holds the reconciler's collaborators. OnReady gates the
// downstream schedulers and fires once, after the init sequence completes.
type ReconcilerConfig struct {
	Client bridge.Client
	Events bridge.EventSource
	Store  *store.Store
	Log    *zap.Logger

	LoadSettings        func(ctx context.Context) error
	PostStartChecks     func(ctx context.Context)
	OnReady             func()
	Notify              NotifyFunc
	OnElevationRequired func(err error)
}

// NewReconciler creates an un-triggered reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string, bool) {}
	}
	return &Reconciler{
		client:          cfg.Client,
		events:          cfg.Events,
		store:           cfg.Store,
		log:             cfg.Log,
		loadSettings:    cfg.LoadSettings,
		postStartChecks: cfg.PostStartChecks,
		onReady:         cfg.OnReady,
		notify:          cfg.Notify,
		onElevation:     cfg.OnElevationRequired,
	}
}

// Run registers the push-event trigger and then issues the direct probe.
// Registration happens first so a ready event arriving between the two
// cannot be missed.
func (r *Reconciler) Run(ctx context.Context) {
	r.sub = r.events.Subscribe(func(ev bridge.Event) {
		r.handleEvent(ctx, ev)
	})

	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if _, err := r.client.GetStatus(probeCtx); err == nil {
			r.trigger(ctx)
		}
		// An unreachable backend is not an error here; the ready event
		// will arrive once the host process comes up.
	}()
}

// Close disposes the event subscription.
func (r *Reconciler) Close() {
	if r.sub != nil {
		r.sub.Close()
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, ev bridge.Event) {
	switch ev.Kind {
	case bridge.EventBackendReady:
		r.trigger(ctx)

	case bridge.EventBackendInitFailed:
		r.log.Warn("backend init failed", zap.String("error", ev.Error))

	case bridge.EventProxyStatusChanged:
		// Applied directly, bypassing the next scheduled poll.
		if ev.Status != nil {
			r.store.SetStatus(*ev.Status)
		}

	case bridge.EventProfileReloadComplete:
		if ev.Reload == nil {
			return
		}
		if ev.Reload.Success {
			msg := "profile reloaded"
			if ev.Reload.Restarted {
				msg = "profile reloaded, engine restarted"
			}
			r.notify(msg, false)
		} else {
			r.notify("profile reload failed: "+ev.Reload.Error, true)
		}
	}
}

// trigger runs the init sequence unless it already ran. The latch is set
// before any asynchronous work begins.
func (r *Reconciler) trigger(ctx context.Context) {
	r.mu.Lock()
	if r.latched {
		r.mu.Unlock()
		return
	}
	r.latched = true
	r.mu.Unlock()

	go r.initialize(ctx)
}

// Latched reports whether the init sequence has been claimed.
func (r *Reconciler) Latched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latched
}

func (r *Reconciler) initialize(ctx context.Context) {
	if r.loadSettings != nil {
		if err := r.loadSettings(ctx); err != nil {
			r.log.Warn("settings load failed", zap.Error(err))
		}
	}

	statusCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	status, err := r.client.GetStatus(statusCtx)
	cancel()
	if err != nil {
		r.log.Warn("initial status load failed", zap.Error(err))
	} else {
		r.store.SetStatus(*status)
	}

	if err == nil && !status.Running {
		r.autoStart(ctx)
	}

	if r.postStartChecks != nil {
		r.postStartChecks(ctx)
	}

	if r.onReady != nil {
		r.onReady()
	}
}

func (r *Reconciler) autoStart(ctx context.Context) {
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := r.client.Start(startCtx)
	if err == nil {
		return
	}

	if pkgerrors.IsElevationRequired(err) {
		// Never shown as a generic toast; the recovery flow offers
		// "continue without this mode" or "relaunch elevated".
		if r.onElevation != nil {
			r.onElevation(err)
		}
		return
	}

	r.log.Error("engine auto-start failed", zap.Error(err))
	r.notify("failed to start engine: "+err.Error(), true)
}
