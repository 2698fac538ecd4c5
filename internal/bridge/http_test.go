package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "kestrel/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(HTTPClientConfig{
		BaseURL: server.URL,
		Secret:  "test-secret",
	})
	require.NoError(t, err)
	return client, server
}

func TestBearerAuthSent(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"running":true,"mode":"rule"}`))
	}))

	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-secret", gotAuth)
	assert.True(t, status.Running)
	assert.Equal(t, RunModeRule, status.Mode)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetStatus(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrBridgeUnauthorized)

	var bridgeErr *pkgerrors.BridgeError
	require.True(t, errors.As(err, &bridgeErr))
	assert.Equal(t, http.StatusUnauthorized, bridgeErr.StatusCode)
	assert.Equal(t, "getStatus", bridgeErr.Op)
}

func TestElevationRequiredDistinguished(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Elevation required to enable TUN device"}`))
	}))

	err := client.SetEnhancedMode(context.Background(), true)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsElevationRequired(err))
}

func TestGenericAPIErrorCarriesMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"profile broken"}`))
	}))

	err := client.Start(context.Background())
	require.Error(t, err)
	assert.False(t, pkgerrors.IsElevationRequired(err))
	assert.Contains(t, err.Error(), "profile broken")
}

func TestGetConnectionsFlattensMetadata(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connections", r.URL.Path)
		w.Write([]byte(`{
			"connections": [{
				"id": "c1",
				"metadata": {
					"host": "example.com",
					"sourceIP": "127.0.0.1",
					"destinationIP": "93.184.216.34",
					"processPath": "/usr/bin/curl"
				},
				"upload": 123,
				"download": 456,
				"start": "2026-03-01T12:00:00Z",
				"chains": ["proxy-hk", "auto"],
				"rule": "DOMAIN",
				"rulePayload": "example.com"
			}]
		}`))
	}))

	records, err := client.GetConnections(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "c1", rec.ID)
	assert.Equal(t, "example.com", rec.Host)
	assert.Equal(t, "curl", rec.Process, "process path trimmed to base name")
	assert.Equal(t, "127.0.0.1", rec.SourceIP)
	assert.Equal(t, []string{"proxy-hk", "auto"}, rec.Chains)
	assert.Equal(t, uint64(123), rec.Upload)
}

func TestSetRunModeRejectsInvalidMode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid mode must not reach the wire")
	}))

	err := client.SetRunMode(context.Background(), RunMode("turbo"))
	assert.Error(t, err)
}

func TestSelectNodeEscapesGroupName(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.SelectNode(context.Background(), "My Group/HK", "node-1")
	require.NoError(t, err)
	assert.Equal(t, "/groups/My%20Group%2FHK", gotPath)
}

func TestProcessName(t *testing.T) {
	assert.Equal(t, "curl", processName("/usr/bin/curl"))
	assert.Equal(t, "app.exe", processName(`C:\Program Files\app.exe`))
	assert.Equal(t, "bare", processName("bare"))
	assert.Equal(t, "", processName(""))
}

func TestBusFanOutAndClose(t *testing.T) {
	bus := NewBus()

	var a, b int
	subA := bus.Subscribe(func(Event) { a++ })
	bus.Subscribe(func(Event) { b++ })

	bus.Publish(Event{Kind: EventBackendReady})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	subA.Close()
	subA.Close() // idempotent

	bus.Publish(Event{Kind: EventBackendReady})
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}
