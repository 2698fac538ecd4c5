package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel/internal/bridge"
	"kestrel/internal/store"
	pkgerrors "kestrel/pkg/errors"
)

type reconcilerHarness struct {
	client *fakeClient
	bus    *bridge.Bus
	store  *store.Store
	r      *Reconciler

	settingsLoads atomic.Int32
	readyCount    atomic.Int32
	ready         chan struct{}
	elevations    atomic.Int32
	toasts        chan string
}

func newReconcilerHarness(client *fakeClient) *reconcilerHarness {
	h := &reconcilerHarness{
		client: client,
		bus:    bridge.NewBus(),
		store:  store.New(store.Options{}),
		ready:  make(chan struct{}, 4),
		toasts: make(chan string, 4),
	}
	h.r = NewReconciler(ReconcilerConfig{
		Client: client,
		Events: h.bus,
		Store:  h.store,
		LoadSettings: func(ctx context.Context) error {
			h.settingsLoads.Add(1)
			return nil
		},
		OnReady: func() {
			h.readyCount.Add(1)
			h.ready <- struct{}{}
		},
		Notify: func(msg string, isError bool) {
			if isError {
				h.toasts <- msg
			}
		},
		OnElevationRequired: func(err error) {
			h.elevations.Add(1)
		},
	})
	return h
}

func (h *reconcilerHarness) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-h.ready:
	case <-time.After(time.Second):
		t.Fatal("init sequence never completed")
	}
}

func TestInitRunsExactlyOnceWithRacingTriggers(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: true}, nil)
	h := newReconcilerHarness(client)

	ctx := context.Background()

	// Both triggers race: the direct probe from Run and the push event.
	h.r.Run(ctx)
	h.bus.Publish(bridge.Event{Kind: bridge.EventBackendReady})
	h.bus.Publish(bridge.Event{Kind: bridge.EventBackendReady})

	h.waitReady(t)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), h.settingsLoads.Load())
	assert.Equal(t, int32(1), h.readyCount.Load())
	assert.True(t, h.r.Latched())
}

func TestEventTriggersWhenDirectProbeFails(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{}, assert.AnError)
	h := newReconcilerHarness(client)

	ctx := context.Background()
	h.r.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	require.False(t, h.r.Latched(), "unreachable backend must not latch")

	// The host process comes up and announces itself.
	client.setStatus(bridge.EngineStatus{Running: true}, nil)
	h.bus.Publish(bridge.Event{Kind: bridge.EventBackendReady})

	h.waitReady(t)
	assert.True(t, h.r.Latched())
	assert.True(t, h.store.Running())
}

func TestAutoStartWhenEngineStopped(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: false}, nil)
	h := newReconcilerHarness(client)

	h.r.Run(context.Background())
	h.waitReady(t)

	_, _, _, _, starts := client.counts()
	assert.Equal(t, 1, starts)
	assert.Empty(t, h.toasts)
}

func TestNoAutoStartWhenAlreadyRunning(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: true}, nil)
	h := newReconcilerHarness(client)

	h.r.Run(context.Background())
	h.waitReady(t)

	_, _, _, _, starts := client.counts()
	assert.Equal(t, 0, starts)
}

func TestElevationFailureRoutedToRecoveryFlow(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: false}, nil)
	client.startErr = pkgerrors.ErrElevationRequired
	h := newReconcilerHarness(client)

	h.r.Run(context.Background())
	h.waitReady(t)

	assert.Equal(t, int32(1), h.elevations.Load())
	assert.Empty(t, h.toasts, "elevation is never a generic error toast")
}

func TestOtherStartFailuresToast(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: false}, nil)
	client.startErr = assert.AnError
	h := newReconcilerHarness(client)

	h.r.Run(context.Background())
	h.waitReady(t)

	assert.Equal(t, int32(0), h.elevations.Load())
	select {
	case <-h.toasts:
	case <-time.After(time.Second):
		t.Fatal("expected an error toast")
	}
}

func TestProxyStatusChangedAppliedImmediately(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{}, assert.AnError)
	h := newReconcilerHarness(client)

	h.r.Run(context.Background())

	h.bus.Publish(bridge.Event{
		Kind:   bridge.EventProxyStatusChanged,
		Status: &bridge.EngineStatus{Running: true, Mode: bridge.RunModeDirect},
	})

	// Applied straight to the store, bypassing the poll and the latch.
	assert.True(t, h.store.Running())
	assert.Equal(t, bridge.RunModeDirect, h.store.Status().Mode)
	assert.False(t, h.r.Latched())
}

func TestProfileReloadOutcomesNotify(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{}, assert.AnError)
	h := newReconcilerHarness(client)

	var infos atomic.Int32
	h.r.notify = func(msg string, isError bool) {
		if isError {
			h.toasts <- msg
		} else {
			infos.Add(1)
		}
	}
	h.r.Run(context.Background())

	h.bus.Publish(bridge.Event{
		Kind:   bridge.EventProfileReloadComplete,
		Reload: &bridge.ProfileReload{Success: true, Restarted: true},
	})
	assert.Equal(t, int32(1), infos.Load())

	h.bus.Publish(bridge.Event{
		Kind:   bridge.EventProfileReloadComplete,
		Reload: &bridge.ProfileReload{Success: false, Error: "bad profile"},
	})
	select {
	case msg := <-h.toasts:
		assert.Contains(t, msg, "bad profile")
	case <-time.After(time.Second):
		t.Fatal("expected a reload failure toast")
	}
}

func TestCloseDisposesEventSubscription(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{}, assert.AnError)
	h := newReconcilerHarness(client)

	h.r.Run(context.Background())
	h.r.Close()

	h.bus.Publish(bridge.Event{Kind: bridge.EventBackendReady})
	time.Sleep(20 * time.Millisecond)
	assert.False(t, h.r.Latched())
}
