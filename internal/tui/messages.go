package tui

import (
	"kestrel/internal/bridge"
	"kestrel/internal/delay"
	"kestrel/internal/storage/models"
)

// storeChangedMsg is pushed by the store subscription whenever any watched
// field group changes; the model re-reads its projections on receipt.
type storeChangedMsg struct{}

// Command results.

type commandResultMsg struct {
	action string
	err    error
}

type connActionResultMsg struct {
	action string
	err    error
}

// Elevation recovery.

type elevationRequiredMsg struct {
	err error
}

// Node data.

type groupsLoadedMsg struct {
	groups []bridge.NodeGroup
	err    error
}

type nodeSelectedMsg struct {
	group string
	node  string
	err   error
}

type delayResultMsg struct {
	result delay.Result
}

// Subscription update messages.

type subUpdateResultMsg struct {
	name  string
	nodes int
	err   error
}

type subsLoadedMsg struct {
	subs []*models.Subscription
	err  error
}

// IP lookups resolved (value lives in the netinfo service).
type ipRefreshedMsg struct{}

// Notification message.

type notificationMsg struct {
	text    string
	isError bool
}

type clearNotificationMsg struct {
	version int
}
