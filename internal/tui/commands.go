package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"kestrel/internal/app"
	"kestrel/internal/bridge"
	pkgerrors "kestrel/pkg/errors"
)

// startStopEngine toggles the engine lifecycle based on current state.
func startStopEngine(a *app.App, running bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if running {
			return commandResultMsg{action: "stop", err: a.StopEngine(ctx)}
		}
		return commandResultMsg{action: "start", err: a.StartEngine(ctx)}
	}
}

// restartEngine restarts the engine.
func restartEngine(a *app.App) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{action: "restart", err: a.RestartEngine(context.Background())}
	}
}

// setRunMode switches the routing mode.
func setRunMode(a *app.App, mode bridge.RunMode) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{action: "mode " + string(mode), err: a.SetRunMode(context.Background(), mode)}
	}
}

// setSystemProxy toggles the OS proxy registration.
func setSystemProxy(a *app.App, enabled bool) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{action: "system proxy", err: a.SetSystemProxy(context.Background(), enabled)}
	}
}

// setEnhancedMode toggles enhanced mode, routing elevation failures to the
// dedicated recovery flow instead of the generic toast.
func setEnhancedMode(a *app.App, enabled bool) tea.Cmd {
	return func() tea.Msg {
		err := a.SetEnhancedMode(context.Background(), enabled)
		if pkgerrors.IsElevationRequired(err) {
			return elevationRequiredMsg{err: err}
		}
		return commandResultMsg{action: "enhanced mode", err: err}
	}
}

// refreshStatus re-probes the engine once.
func refreshStatus(a *app.App) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{action: "refresh", err: a.RefreshStatus(context.Background())}
	}
}

// closeConnection closes one connection; the next registry poll reclassifies
// the record.
func closeConnection(a *app.App, id string) tea.Cmd {
	return func() tea.Msg {
		return connActionResultMsg{action: "close", err: a.CloseConnection(context.Background(), id)}
	}
}

// closeAllConnections closes every live connection.
func closeAllConnections(a *app.App) tea.Cmd {
	return func() tea.Msg {
		return connActionResultMsg{action: "close all", err: a.CloseAllConnections(context.Background())}
	}
}

// loadGroups fetches the node groups from the engine.
func loadGroups(a *app.App) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		groups, err := a.Bridge.GetNodeGroups(ctx)
		return groupsLoadedMsg{groups: groups, err: err}
	}
}

// selectNode switches a group's active node and reloads the groups.
func selectNode(a *app.App, group, node string) tea.Cmd {
	return func() tea.Msg {
		err := a.SelectNode(context.Background(), group, node)
		return nodeSelectedMsg{group: group, node: node, err: err}
	}
}

// updateSubscription refreshes one subscription by name.
func updateSubscription(a *app.App, name string) tea.Cmd {
	return func() tea.Msg {
		result, err := a.SubManager.UpdateByName(context.Background(), name)
		if err != nil {
			return subUpdateResultMsg{name: name, err: err}
		}
		return subUpdateResultMsg{name: result.Name, nodes: result.NodeCount}
	}
}

// loadSubscriptions lists the stored subscriptions.
func loadSubscriptions(a *app.App) tea.Cmd {
	return func() tea.Msg {
		subs, err := a.Storage.GetAllSubscriptions(context.Background())
		return subsLoadedMsg{subs: subs, err: err}
	}
}

// clearNotification schedules a notification clear for a specific version.
func clearNotification(after time.Duration, version int) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
