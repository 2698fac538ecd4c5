package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel/internal/bridge"
	"kestrel/internal/store"
)

func newProbe(client *fakeClient) (*StatusProbe, *store.Store) {
	st := store.New(store.Options{})
	p := NewStatusProbe(StatusProbeConfig{
		Client: client,
		Store:  st,
	})
	return p, st
}

func TestProbeSwitchesToSlowAfterStableTicks(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: true}, nil)
	p, _ := newProbe(client)

	ctx := context.Background()

	// First observation establishes the value and stays FAST.
	p.step(ctx)
	assert.Equal(t, FastInterval, p.Interval())
	assert.Equal(t, 0, p.StableCount())

	// The value must be stable for StabilityThreshold consecutive probes
	// before the interval relaxes.
	for i := 1; i < StabilityThreshold; i++ {
		p.step(ctx)
		assert.Equal(t, FastInterval, p.Interval(), "still fast at %d stable ticks", i)
	}
	p.step(ctx)
	assert.Equal(t, SlowInterval, p.Interval())
}

func TestProbeResetsToFastOnChange(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: true}, nil)
	p, _ := newProbe(client)

	ctx := context.Background()
	for i := 0; i <= StabilityThreshold; i++ {
		p.step(ctx)
	}
	require.Equal(t, SlowInterval, p.Interval())

	client.setStatus(bridge.EngineStatus{Running: false}, nil)
	p.step(ctx)

	assert.Equal(t, FastInterval, p.Interval())
	assert.Equal(t, 0, p.StableCount())
}

func TestProbeErrorKeepsLastGoodStatus(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: true, Mode: bridge.RunModeRule}, nil)
	p, st := newProbe(client)

	ctx := context.Background()
	for i := 0; i <= StabilityThreshold; i++ {
		p.step(ctx)
	}
	require.True(t, st.Running())

	client.setStatus(bridge.EngineStatus{}, assert.AnError)
	p.step(ctx)

	// The store keeps the last good snapshot so a transient hiccup does
	// not wipe the chart, but the state machine treats it as a change and
	// probes fast again.
	assert.True(t, st.Running())
	assert.Equal(t, bridge.RunModeRule, st.Status().Mode)
	assert.Equal(t, FastInterval, p.Interval())
}

func TestProbeFetchesRunModeOnStartTransition(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: false}, nil)
	client.mode = bridge.RunModeGlobal
	p, st := newProbe(client)

	ctx := context.Background()
	p.step(ctx)
	require.False(t, st.Running())

	client.setStatus(bridge.EngineStatus{Running: true}, nil)
	p.step(ctx)

	require.Eventually(t, func() bool {
		return st.Status().Mode == bridge.RunModeGlobal
	}, time.Second, 5*time.Millisecond, "one-shot mode fetch after stopped->running")

	// Staying running does not refetch.
	p.step(ctx)
	p.step(ctx)
	time.Sleep(20 * time.Millisecond)
	_, modeCalls, _, _, _ := client.counts()
	assert.Equal(t, 1, modeCalls)
}

func TestProbeStartStopIdempotent(t *testing.T) {
	client := &fakeClient{}
	client.setStatus(bridge.EngineStatus{Running: true}, nil)

	st := store.New(store.Options{})
	p := NewStatusProbe(StatusProbeConfig{
		Client: client,
		Store:  st,
		Fast:   5 * time.Millisecond,
		Slow:   5 * time.Millisecond,
	})

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx) // no second loop

	require.Eventually(t, func() bool {
		calls, _, _, _, _ := client.counts()
		return calls >= 2
	}, time.Second, time.Millisecond)

	p.Stop()
	p.Stop() // no double close

	// At most one in-flight probe finishes after Stop; then the count
	// must freeze.
	time.Sleep(20 * time.Millisecond)
	frozen, _, _, _, _ := client.counts()
	time.Sleep(30 * time.Millisecond)
	calls, _, _, _, _ := client.counts()
	assert.Equal(t, frozen, calls)
}
