package bridge

import "context"

// Client is the typed request/response channel to the engine host process.
// Every call is a suspension point: responses may arrive out of order
// relative to when their requests were issued, and callers that care about
// staleness guard results with a sequence token.
type Client interface {
	// Status
	GetStatus(ctx context.Context) (*EngineStatus, error)
	GetRunMode(ctx context.Context) (RunMode, error)

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error

	// Mode toggles
	SetRunMode(ctx context.Context, mode RunMode) error
	SetSystemProxy(ctx context.Context, enabled bool) error
	SetEnhancedMode(ctx context.Context, enabled bool) error

	// Telemetry
	GetTraffic(ctx context.Context) (*Traffic, error)
	GetConnections(ctx context.Context) ([]ConnectionRecord, error)

	// Connection commands
	CloseConnection(ctx context.Context, id string) error
	CloseAllConnections(ctx context.Context) error

	// Nodes
	GetNodeGroups(ctx context.Context) ([]NodeGroup, error)
	SelectNode(ctx context.Context, group, node string) error
	TestNodeDelay(ctx context.Context, nodeName string) (int, error)
}

// EventSource delivers push events from the engine host process.
// Subscriptions are explicit objects; callers must Close them on teardown.
type EventSource interface {
	Subscribe(fn func(Event)) *Subscription
}
