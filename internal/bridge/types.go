package bridge

import "time"

// RunMode is the engine's routing mode.
type RunMode string

const (
	RunModeRule   RunMode = "rule"
	RunModeGlobal RunMode = "global"
	RunModeDirect RunMode = "direct"
)

// Valid reports whether m is one of the recognized run modes.
func (m RunMode) Valid() bool {
	switch m {
	case RunModeRule, RunModeGlobal, RunModeDirect:
		return true
	}
	return false
}

// Ports holds the engine's inbound listener ports. Mixed is zero when the
// engine exposes no mixed-protocol listener.
type Ports struct {
	HTTP  int `json:"http"`
	Socks int `json:"socks"`
	Mixed int `json:"mixed,omitempty"`
}

// EngineStatus is the engine's externally visible runtime state.
type EngineStatus struct {
	Running             bool    `json:"running"`
	Mode                RunMode `json:"mode"`
	Ports               Ports   `json:"ports"`
	SystemProxyEnabled  bool    `json:"systemProxy"`
	EnhancedModeEnabled bool    `json:"enhancedMode"`
}

// Traffic is an instantaneous throughput reading in bytes per second.
type Traffic struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// ConnectionRecord describes one live connection as reported by the engine.
// The ID is engine-assigned and stable for the lifetime of the connection.
type ConnectionRecord struct {
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	Process       string    `json:"process"`
	SourceIP      string    `json:"sourceIP"`
	DestinationIP string    `json:"destinationIP"`
	Rule          string    `json:"rule"`
	RulePayload   string    `json:"rulePayload"`
	Chains        []string  `json:"chains"`
	Upload        uint64    `json:"upload"`
	Download      uint64    `json:"download"`
	StartedAt     time.Time `json:"start"`
}

// NodeGroup is a selectable group of proxy nodes.
type NodeGroup struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Now     string   `json:"now"`
	Members []string `json:"all"`
}

// Reserved built-in node names that are never delay-tested.
const (
	NodeDirect = "DIRECT"
	NodeReject = "REJECT"
)

// EventKind identifies a push event from the engine host process.
type EventKind string

const (
	// EventBackendReady is emitted once when the engine process becomes
	// reachable.
	EventBackendReady EventKind = "backend-ready"
	// EventBackendInitFailed carries an error string; informational only.
	EventBackendInitFailed EventKind = "backend-init-failed"
	// EventProxyStatusChanged carries a full EngineStatus snapshot.
	EventProxyStatusChanged EventKind = "proxy-status-changed"
	// EventProfileReloadComplete reports the outcome of a profile reload.
	EventProfileReloadComplete EventKind = "profile-reload-complete"
)

// ProfileReload is the payload of EventProfileReloadComplete.
type ProfileReload struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Restarted bool   `json:"restarted,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Event is a single push notification from the engine host process.
// Exactly the fields relevant to Kind are populated.
type Event struct {
	Kind   EventKind      `json:"type"`
	Status *EngineStatus  `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
	Reload *ProfileReload `json:"reload,omitempty"`
}
