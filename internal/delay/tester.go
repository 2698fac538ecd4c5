// Package delay runs per-node latency probes with de-duplication. Its
// in-flight set and result cache are long-lived and independent of the main
// store's polling cadence, so results survive node-group navigation.
package delay

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"kestrel/internal/bridge"
)

// FailedDelay is the sentinel recorded when a probe fails or times out.
// Failure is a value, not an error surfaced to the caller.
const FailedDelay = -1

// Result is the outcome of one node probe.
type Result struct {
	NodeName string
	DelayMS  int
	TestedAt time.Time
}

// Failed reports whether the probe failed.
func (r Result) Failed() bool { return r.DelayMS < 0 }

// Recorder persists probe outcomes, best-effort.
type Recorder interface {
	RecordDelay(ctx context.Context, result Result) error
}

// Tester probes node latency through the engine bridge.
type Tester struct {
	client   bridge.Client
	recorder Recorder
	clock    clock.Clock
	log      *zap.Logger

	timeout  time.Duration
	sem      *semaphore.Weighted
	onResult func(Result)

	mu       sync.Mutex
	inFlight map[string]struct{}
	results  *lru.Cache[string, Result]
}

// TesterConfig holds configuration for the Tester.
type TesterConfig struct {
	Client   bridge.Client
	Recorder Recorder // optional
	Clock    clock.Clock
	Log      *zap.Logger

	Workers   int64
	Timeout   time.Duration
	CacheSize int
	// OnResult is invoked as each probe individually resolves, so a view
	// can update incrementally rather than all-at-once.
	OnResult func(Result)
}

// NewTester creates a new Tester.
func NewTester(cfg TesterConfig) *Tester {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	cache, _ := lru.New[string, Result](cfg.CacheSize)

	return &Tester{
		client:   cfg.Client,
		recorder: cfg.Recorder,
		clock:    cfg.Clock,
		log:      cfg.Log,
		timeout:  cfg.Timeout,
		sem:      semaphore.NewWeighted(cfg.Workers),
		onResult: cfg.OnResult,
		inFlight: make(map[string]struct{}),
		results:  cache,
	}
}

// Test probes one node. A node already in flight is a no-op; otherwise the
// probe runs asynchronously and its result overwrites any prior one. The
// node leaves the in-flight set on every exit path.
func (t *Tester) Test(ctx context.Context, nodeName string) {
	t.mu.Lock()
	if _, busy := t.inFlight[nodeName]; busy {
		t.mu.Unlock()
		return
	}
	t.inFlight[nodeName] = struct{}{}
	t.mu.Unlock()

	go t.run(ctx, nodeName)
}

// TestAll fires an independent probe for every name except the reserved
// built-ins. It does not await completion; each result becomes visible as
// soon as it individually resolves.
func (t *Tester) TestAll(ctx context.Context, names []string) {
	for _, name := range names {
		if name == bridge.NodeDirect || name == bridge.NodeReject {
			continue
		}
		t.Test(ctx, name)
	}
}

func (t *Tester) run(ctx context.Context, nodeName string) {
	defer func() {
		t.mu.Lock()
		delete(t.inFlight, nodeName)
		t.mu.Unlock()
	}()

	result := Result{
		NodeName: nodeName,
		DelayMS:  FailedDelay,
		TestedAt: t.clock.Now(),
	}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.finish(ctx, result)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, t.timeout)
	delayMS, err := t.client.TestNodeDelay(probeCtx, nodeName)
	cancel()
	t.sem.Release(1)

	if err != nil {
		t.log.Debug("delay probe failed", zap.String("node", nodeName), zap.Error(err))
	} else {
		result.DelayMS = delayMS
	}
	result.TestedAt = t.clock.Now()

	t.finish(ctx, result)
}

func (t *Tester) finish(ctx context.Context, result Result) {
	t.results.Add(result.NodeName, result)

	if t.recorder != nil {
		// Best-effort; a write failure never blocks the result.
		if err := t.recorder.RecordDelay(ctx, result); err != nil {
			t.log.Debug("delay record failed", zap.Error(err))
		}
	}

	if t.onResult != nil {
		t.onResult(result)
	}
}

// Result returns the cached result for a node, if any.
func (t *Tester) Result(nodeName string) (Result, bool) {
	return t.results.Get(nodeName)
}

// Results returns a snapshot of all cached results keyed by node name.
func (t *Tester) Results() map[string]Result {
	out := make(map[string]Result, t.results.Len())
	for _, name := range t.results.Keys() {
		if r, ok := t.results.Get(name); ok {
			out[name] = r
		}
	}
	return out
}

// InFlight reports whether a probe for the node is currently running.
func (t *Tester) InFlight(nodeName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.inFlight[nodeName]
	return busy
}

// InFlightCount returns the number of probes currently running.
func (t *Tester) InFlightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}
