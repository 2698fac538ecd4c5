package monitor

import (
	"context"
	"sync"

	"kestrel/internal/bridge"
)

// fakeClient scripts the bridge calls the schedulers make. The embedded
// interface keeps the full method set; anything a test does not script
// panics, which is exactly what we want.
type fakeClient struct {
	bridge.Client

	mu sync.Mutex

	status    *bridge.EngineStatus
	statusErr error
	mode      bridge.RunMode
	traffic   bridge.Traffic
	conns     []bridge.ConnectionRecord
	startErr  error

	statusCalls  int
	modeCalls    int
	trafficCalls int
	connCalls    int
	startCalls   int
}

func (f *fakeClient) setStatus(s bridge.EngineStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = &s
	f.statusErr = err
}

func (f *fakeClient) GetStatus(ctx context.Context) (*bridge.EngineStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	s := *f.status
	return &s, nil
}

func (f *fakeClient) GetRunMode(ctx context.Context) (bridge.RunMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modeCalls++
	return f.mode, nil
}

func (f *fakeClient) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeClient) GetTraffic(ctx context.Context) (*bridge.Traffic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trafficCalls++
	t := f.traffic
	return &t, nil
}

func (f *fakeClient) GetConnections(ctx context.Context) ([]bridge.ConnectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connCalls++
	out := make([]bridge.ConnectionRecord, len(f.conns))
	copy(out, f.conns)
	return out, nil
}

func (f *fakeClient) counts() (status, mode, traffic, conns, start int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.modeCalls, f.trafficCalls, f.connCalls, f.startCalls
}
