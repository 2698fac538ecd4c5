package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel/internal/bridge"
	"kestrel/internal/store"
)

func newRegistry(client *fakeClient, clk clock.Clock) (*ConnRegistry, *store.Store) {
	st := store.New(store.Options{})
	r := NewConnRegistry(ConnRegistryConfig{
		Client:   client,
		Store:    st,
		Clock:    clk,
		Interval: 100 * time.Millisecond,
	})
	return r, st
}

func TestRegistryPollsImmediatelyOnStart(t *testing.T) {
	client := &fakeClient{}
	client.conns = []bridge.ConnectionRecord{{ID: "a", Host: "example.com"}}
	clk := clock.NewMock()
	r, st := newRegistry(client, clk)
	defer r.Close()

	st.SetStatus(bridge.EngineStatus{Running: true})
	r.BindRunning(context.Background())

	// The first poll needs no tick; the view fills within one cycle of
	// the engine starting.
	require.Eventually(t, func() bool {
		return len(st.Live()) == 1
	}, time.Second, time.Millisecond)

	entries := st.History()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Active)
	assert.Equal(t, 1, st.Stats().Connections)
}

func TestRegistryIdleWhileEngineStopped(t *testing.T) {
	client := &fakeClient{}
	client.conns = []bridge.ConnectionRecord{{ID: "a"}}
	clk := clock.NewMock()
	r, st := newRegistry(client, clk)
	defer r.Close()

	st.SetStatus(bridge.EngineStatus{Running: false})
	r.BindRunning(context.Background())

	advance(clk, time.Second)

	_, _, _, conns, _ := client.counts()
	assert.Equal(t, 0, conns)
	assert.Empty(t, st.Live())
}

func TestRegistryReconcilesClosedConnections(t *testing.T) {
	client := &fakeClient{}
	client.mu.Lock()
	client.conns = []bridge.ConnectionRecord{{ID: "a"}, {ID: "b"}}
	client.mu.Unlock()
	clk := clock.NewMock()
	r, st := newRegistry(client, clk)
	defer r.Close()

	st.SetStatus(bridge.EngineStatus{Running: true})
	r.BindRunning(context.Background())

	require.Eventually(t, func() bool {
		return len(st.Live()) == 2
	}, time.Second, time.Millisecond)

	// "a" disappears from the engine's snapshot.
	client.mu.Lock()
	client.conns = []bridge.ConnectionRecord{{ID: "b"}}
	client.mu.Unlock()

	require.Eventually(t, func() bool {
		advance(clk, 100*time.Millisecond)
		return len(st.Live()) == 1
	}, 2*time.Second, time.Millisecond)

	entries := st.History()
	require.Len(t, entries, 2)
	for _, e := range entries {
		switch e.ID {
		case "a":
			assert.False(t, e.Active)
		case "b":
			assert.True(t, e.Active)
		}
	}
}

func TestRegistryStopsWhenEngineStops(t *testing.T) {
	client := &fakeClient{}
	clk := clock.NewMock()
	r, st := newRegistry(client, clk)
	defer r.Close()

	st.SetStatus(bridge.EngineStatus{Running: true})
	r.BindRunning(context.Background())

	require.Eventually(t, func() bool {
		_, _, _, conns, _ := client.counts()
		return conns >= 1
	}, time.Second, time.Millisecond)

	st.SetStatus(bridge.EngineStatus{Running: false})
	time.Sleep(10 * time.Millisecond)
	_, _, _, frozen, _ := client.counts()

	advance(clk, time.Second)
	_, _, _, conns, _ := client.counts()
	assert.Equal(t, frozen, conns)
}
