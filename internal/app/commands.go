package app

import (
	"context"
	"time"

	"kestrel/internal/bridge"
)

// Command wrappers for the presentation layer. Errors propagate to the
// caller for toast display; store state is never updated optimistically —
// after a successful command the confirmed status is re-fetched, so the UI
// never shows a state the engine did not acknowledge.

const commandTimeout = 30 * time.Second

// RefreshStatus probes the engine once and applies the confirmed status.
func (a *App) RefreshStatus(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	status, err := a.Bridge.GetStatus(reqCtx)
	if err != nil {
		return err
	}
	a.Store.SetStatus(*status)
	return nil
}

// StartEngine starts the engine.
func (a *App) StartEngine(ctx context.Context) error {
	return a.command(ctx, a.Bridge.Start)
}

// StopEngine stops the engine.
func (a *App) StopEngine(ctx context.Context) error {
	return a.command(ctx, a.Bridge.Stop)
}

// RestartEngine restarts the engine.
func (a *App) RestartEngine(ctx context.Context) error {
	return a.command(ctx, a.Bridge.Restart)
}

// SetRunMode switches the routing mode.
func (a *App) SetRunMode(ctx context.Context, mode bridge.RunMode) error {
	return a.command(ctx, func(ctx context.Context) error {
		return a.Bridge.SetRunMode(ctx, mode)
	})
}

// SetSystemProxy toggles the OS proxy registration.
func (a *App) SetSystemProxy(ctx context.Context, enabled bool) error {
	return a.command(ctx, func(ctx context.Context) error {
		return a.Bridge.SetSystemProxy(ctx, enabled)
	})
}

// SetEnhancedMode toggles enhanced mode. Callers must check the error with
// errors.IsElevationRequired and route that case to the recovery flow.
func (a *App) SetEnhancedMode(ctx context.Context, enabled bool) error {
	return a.command(ctx, func(ctx context.Context) error {
		return a.Bridge.SetEnhancedMode(ctx, enabled)
	})
}

// CloseConnection closes one connection. The record is not locally marked
// closed; the next registry poll observes the authoritative result.
func (a *App) CloseConnection(ctx context.Context, id string) error {
	reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return a.Bridge.CloseConnection(reqCtx, id)
}

// CloseAllConnections closes every live connection.
func (a *App) CloseAllConnections(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return a.Bridge.CloseAllConnections(reqCtx)
}

// SelectNode switches a group's active node.
func (a *App) SelectNode(ctx context.Context, group, node string) error {
	reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return a.Bridge.SelectNode(reqCtx, group, node)
}

// command runs one lifecycle/toggle request and, on success, re-fetches the
// confirmed status.
func (a *App) command(ctx context.Context, fn func(context.Context) error) error {
	reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := fn(reqCtx); err != nil {
		return err
	}
	return a.RefreshStatus(ctx)
}
