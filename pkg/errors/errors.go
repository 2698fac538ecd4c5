package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Engine errors
	ErrEngineNotRunning     = errors.New("engine is not running")
	ErrEngineAlreadyRunning = errors.New("engine is already running")
	ErrEngineUnreachable    = errors.New("engine is unreachable")
	ErrEngineStartFailed    = errors.New("failed to start engine")
	ErrEngineStopFailed     = errors.New("failed to stop engine")

	// ErrElevationRequired signals that the engine needs elevated
	// privileges to enable the requested mode. It must never be shown as
	// a generic error toast; callers route it to the recovery flow.
	ErrElevationRequired = errors.New("elevated privileges required")

	// Bridge errors
	ErrBridgeTimeout      = errors.New("bridge request timed out")
	ErrBridgeUnauthorized = errors.New("bridge rejected credentials")

	// Connection errors
	ErrConnectionNotFound = errors.New("connection not found")

	// Node errors
	ErrNodeNotFound     = errors.New("node not found")
	ErrDelayTestFailed  = errors.New("delay test failed")
	ErrDelayTestTimeout = errors.New("delay test timeout")

	// Subscription errors
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrSubscriptionFetchFailed  = errors.New("failed to fetch subscription")
	ErrSubscriptionDecodeFailed = errors.New("failed to decode subscription")
	ErrSubscriptionEmpty        = errors.New("subscription is empty")

	// Settings errors
	ErrSettingNotFound = errors.New("setting not found")
)

// BridgeError represents a failed request to the engine bridge.
type BridgeError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *BridgeError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("bridge %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bridge %s: %v", e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// NodeError represents a node-related error
type NodeError struct {
	Name string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node '%s': %v", e.Name, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// SubscriptionError represents a subscription-related error
type SubscriptionError struct {
	URL  string
	Name string
	Err  error
}

func (e *SubscriptionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("subscription '%s': %v", e.Name, e.Err)
	}
	return fmt.Sprintf("subscription '%s': %v", e.URL, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// IsElevationRequired reports whether err is, or wraps, the distinguished
// elevation-required condition.
func IsElevationRequired(err error) bool {
	return errors.Is(err, ErrElevationRequired)
}
