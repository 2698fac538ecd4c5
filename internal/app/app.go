// Package app wires the panel together: configuration, storage, the bridge
// client and event stream, the central store, and every scheduler around it.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kestrel/internal/bridge"
	"kestrel/internal/config"
	"kestrel/internal/delay"
	"kestrel/internal/monitor"
	"kestrel/internal/netinfo"
	"kestrel/internal/storage"
	"kestrel/internal/storage/models"
	"kestrel/internal/storage/sqlite"
	"kestrel/internal/store"
	"kestrel/internal/subscription"
)

// App represents the application context
type App struct {
	Config config.Config
	Log    *zap.Logger

	Storage storage.Storage
	Bridge  bridge.Client
	Events  *bridge.EventStream
	Store   *store.Store

	Probe      *monitor.StatusProbe
	Reconciler *monitor.Reconciler
	Sampler    *monitor.TrafficSampler
	Registry   *monitor.ConnRegistry
	Tester     *delay.Tester
	NetInfo    *netinfo.Service

	SubManager   *subscription.Manager
	SubScheduler *subscription.Scheduler

	// Presentation hooks; nil-safe defaults until a frontend registers.
	notify      monitor.NotifyFunc
	onElevation func(err error)
	onDelay     func(delay.Result)

	cancel context.CancelFunc
}

// Options overrides defaults for New.
type Options struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	cfg := config.DefaultConfig()

	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir := filepath.Join(home, ".local", "share", "kestrel")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath = filepath.Join(dataDir, "kestrel.db")
	}

	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client, err := bridge.NewHTTPClient(bridge.HTTPClientConfig{
		BaseURL: cfg.BridgeURL,
		Secret:  cfg.BridgeSecret,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	events, err := bridge.NewEventStream(cfg.BridgeURL, cfg.BridgeSecret, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	st := store.New(store.Options{
		RingCapacity:    cfg.RingCapacity,
		ClosedRetention: cfg.ClosedRetention,
	})

	a := &App{
		Config:  cfg,
		Log:     log,
		Storage: db,
		Bridge:  client,
		Events:  events,
		Store:   st,
		notify:  func(string, bool) {},
	}

	a.Probe = monitor.NewStatusProbe(monitor.StatusProbeConfig{
		Client: client,
		Store:  st,
		Log:    log,
	})
	a.Sampler = monitor.NewTrafficSampler(monitor.TrafficSamplerConfig{
		Client:          client,
		Store:           st,
		Log:             log,
		TrafficInterval: time.Duration(cfg.TrafficIntervalMS) * time.Millisecond,
	})
	a.Registry = monitor.NewConnRegistry(monitor.ConnRegistryConfig{
		Client:   client,
		Store:    st,
		Log:      log,
		Interval: time.Duration(cfg.ConnIntervalMS) * time.Millisecond,
	})
	a.Tester = delay.NewTester(delay.TesterConfig{
		Client:   client,
		Recorder: &delayRecorder{storage: db},
		Log:      log,
		Workers:  int64(cfg.DelayWorkers),
		Timeout:  time.Duration(cfg.DelayTimeoutMS) * time.Millisecond,
		OnResult: func(r delay.Result) { a.delayResult(r) },
	})
	a.NetInfo = netinfo.NewService(nil)

	a.SubManager = subscription.NewManager(db)
	a.SubScheduler, err = subscription.NewScheduler(a.SubManager, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return a, nil
}

// Run starts the event stream and the startup reconciler. The status probe,
// traffic sampler and connection registry all start downstream of the
// reconciler's ready gate.
func (a *App) Run(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.Reconciler = monitor.NewReconciler(monitor.ReconcilerConfig{
		Client: a.Bridge,
		Events: a.Events,
		Store:  a.Store,
		Log:    a.Log,
		LoadSettings: func(ctx context.Context) error {
			_, err := a.Storage.GetAllSettings(ctx)
			return err
		},
		OnReady: func() {
			a.Probe.Start(ctx)
			a.Sampler.BindRunning(ctx)
			a.Registry.BindRunning(ctx)
		},
		Notify: func(msg string, isErr bool) { a.notify(msg, isErr) },
		OnElevationRequired: func(err error) {
			if a.onElevation != nil {
				a.onElevation(err)
			} else {
				a.Log.Warn("elevation required", zap.Error(err))
			}
		},
		PostStartChecks: func(ctx context.Context) {
			a.NetInfo.RefreshPublic(ctx)
			a.NetInfo.RefreshLocal(ctx)
		},
	})

	// Register the event trigger before the direct probe inside Run, and
	// bring the websocket up before either so no ready event is lost.
	go a.Events.Run(ctx)
	a.Reconciler.Run(ctx)

	if err := a.SubScheduler.Start(ctx); err != nil {
		a.Log.Warn("subscription scheduler failed to start", zap.Error(err))
	}
}

// SetNotify registers the user-notification sink (e.g. the TUI's toast).
func (a *App) SetNotify(fn monitor.NotifyFunc) {
	if fn != nil {
		a.notify = fn
	}
}

// SetOnElevationRequired registers the elevation recovery handler.
func (a *App) SetOnElevationRequired(fn func(err error)) {
	a.onElevation = fn
}

// SetOnDelayResult registers an observer for individually resolving delay
// probes.
func (a *App) SetOnDelayResult(fn func(delay.Result)) {
	a.onDelay = fn
}

func (a *App) delayResult(r delay.Result) {
	if a.onDelay != nil {
		a.onDelay(r)
	}
}

// Close tears the application down: timers first, then the event stream,
// then storage.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Probe != nil {
		a.Probe.Stop()
	}
	if a.Sampler != nil {
		a.Sampler.Close()
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.Reconciler != nil {
		a.Reconciler.Close()
	}
	if a.SubScheduler != nil && a.SubScheduler.IsRunning() {
		a.SubScheduler.Stop()
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

// delayRecorder adapts the storage layer to the delay tester's Recorder.
type delayRecorder struct {
	storage storage.Storage
}

func (r *delayRecorder) RecordDelay(ctx context.Context, result delay.Result) error {
	return r.storage.RecordDelay(ctx, &models.DelayRecord{
		NodeName: result.NodeName,
		DelayMS:  result.DelayMS,
		Success:  !result.Failed(),
		TestedAt: result.TestedAt,
	})
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
