// Package tui is the terminal frontend. It owns no timers and no polling:
// every piece of data it renders comes from the central store's selectors,
// and every action it offers goes through the app's command wrappers.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kestrel/internal/app"
	"kestrel/internal/bridge"
	"kestrel/internal/delay"
	"kestrel/internal/store"
)

// Tab indices.
const (
	tabStatus   = 0
	tabConns    = 1
	tabNodes    = 2
	tabSettings = 3
	tabCount    = 4
)

// Model is the root BubbleTea model.
type Model struct {
	app     *app.App
	program *tea.Program

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Store projections, re-read on every storeChangedMsg.
	status  bridge.EngineStatus
	stats   store.LiveStats
	samples []store.TrafficSample
	live    []bridge.ConnectionRecord
	history []store.HistoryEntry
	now     time.Time

	// Elevation recovery dialog.
	elevationPending bool
	elevationErr     error

	// Tab models.
	statusTab   statusModel
	connsTab    connsModel
	nodesTab    nodesModel
	settingsTab settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// NewModel creates a new root Model.
func NewModel(a *app.App) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &Model{
		app:         a,
		spinner:     s,
		statusTab:   newStatusModel(),
		connsTab:    newConnsModel(),
		nodesTab:    newNodesModel(),
		settingsTab: newSettingsModel(),
	}
}

func (m *Model) Init() tea.Cmd {
	m.readStore()
	return tea.Batch(
		loadGroups(m.app),
		loadSubscriptions(m.app),
		m.spinner.Tick,
	)
}

// readStore refreshes every cached projection from the store.
func (m *Model) readStore() {
	st := m.app.Store
	m.status = st.Status()
	m.stats = st.Stats()
	m.samples = st.TrafficSamples()
	m.live = st.Live()
	m.history = st.History()
	m.now = st.Now()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.connsTab.setSize(msg.Width, ch)
		m.nodesTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if m.elevationPending {
			return m, m.handleElevationKey(msg)
		}
		if cmd := m.handleGlobalKey(msg); cmd != nil {
			return m, cmd
		}

	case storeChangedMsg:
		m.readStore()

	case ipRefreshedMsg:
		// Values live in the netinfo service; nothing to cache.

	case commandResultMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		}

	case connActionResultMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		}
		// On success the next registry poll reclassifies the records;
		// nothing is mutated locally.

	case elevationRequiredMsg:
		m.elevationPending = true
		m.elevationErr = msg.err

	case groupsLoadedMsg:
		if msg.err == nil {
			m.nodesTab.setGroups(msg.groups)
		}

	case nodeSelectedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("select %s failed: %v", msg.node, msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("%s → %s", msg.group, msg.node), false)
			cmds = append(cmds, loadGroups(m.app))
		}

	case delayResultMsg:
		// Incremental: one probe resolved, re-render its row.
		m.nodesTab.noteResult(msg.result)

	case subsLoadedMsg:
		// Delivered regardless of which tab is active so the initial load
		// from Init lands.
		cmds = append(cmds, m.settingsTab.Update(msg, m))

	case subUpdateResultMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Update failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Updated %s: %d nodes", msg.name, msg.nodes), false)
		}

	case notificationMsg:
		m.setNotification(msg.text, msg.isError)

	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	// Spinner.
	if m.nodesTab.testing() {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabStatus:
		cmds = append(cmds, m.statusTab.Update(msg, m))
	case tabConns:
		cmds = append(cmds, m.connsTab.Update(msg, m))
	case tabNodes:
		cmds = append(cmds, m.nodesTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	ready := m.app.Reconciler != nil && m.app.Reconciler.Latched()
	header := renderHeader(m.activeTab, m.status.Running, ready, string(m.status.Mode), m.width)

	var content string
	if m.elevationPending {
		content = m.viewElevationDialog()
	} else {
		switch m.activeTab {
		case tabStatus:
			content = m.statusTab.View(m)
		case tabConns:
			content = m.connsTab.View(m)
		case tabNodes:
			content = m.nodesTab.View(m)
		case tabSettings:
			content = m.settingsTab.View(m)
		}
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	helpText := renderHelpBar(m.showHelp)
	footer := renderFooter(helpText, m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

func (m *Model) viewElevationDialog() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		cardTitleStyle.Render("Elevated privileges required"),
		"",
		cardValueStyle.Render("Enhanced mode needs elevated privileges to manage the TUN device."),
		"",
		helpKeyStyle.Render("c")+helpDescStyle.Render(" continue without enhanced mode"),
		helpKeyStyle.Render("q")+helpDescStyle.Render(" quit and relaunch elevated"),
	)
	w := m.width - 6
	if w < 40 {
		w = 40
	}
	return cardStyle.Width(w).Render(content)
}

func (m *Model) handleElevationKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "c", "esc":
		m.elevationPending = false
		m.elevationErr = nil
		return nil
	case "q", "ctrl+c":
		return tea.Quit
	}
	return nil
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 4
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) tea.Cmd {
	// Don't intercept while the search input has focus.
	if m.activeTab == tabConns && m.connsTab.searching {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return nil

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return nil

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return nil

	case key.Matches(msg, keys.StartStop):
		return startStopEngine(m.app, m.status.Running)

	case key.Matches(msg, keys.Restart):
		if m.status.Running {
			return restartEngine(m.app)
		}
		return nil

	case key.Matches(msg, keys.Mode):
		return setRunMode(m.app, nextMode(m.status.Mode))

	case key.Matches(msg, keys.Refresh):
		return tea.Batch(refreshStatus(m.app), loadGroups(m.app))
	}

	return nil
}

// nextMode cycles rule → global → direct → rule.
func nextMode(mode bridge.RunMode) bridge.RunMode {
	switch mode {
	case bridge.RunModeRule:
		return bridge.RunModeGlobal
	case bridge.RunModeGlobal:
		return bridge.RunModeDirect
	default:
		return bridge.RunModeRule
	}
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// uiSnapshot is what the TUI's store subscription watches; any change in it
// triggers a re-render message.
type uiSnapshot struct {
	status   bridge.EngineStatus
	stats    store.LiveStats
	now      time.Time
	histLen  int
	lastTick time.Time
}

// NewProgram creates a bubbletea program wired to the app's push channels.
func NewProgram(a *app.App) *tea.Program {
	m := NewModel(a)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p

	a.Store.Subscribe(
		func(s *store.Store) interface{} {
			samples := s.TrafficSamples()
			var last time.Time
			if len(samples) > 0 {
				last = samples[len(samples)-1].Timestamp
			}
			return uiSnapshot{
				status:   s.Status(),
				stats:    s.Stats(),
				now:      s.Now(),
				histLen:  len(s.History()),
				lastTick: last,
			}
		},
		nil,
		func(interface{}) { p.Send(storeChangedMsg{}) },
	)

	a.SetNotify(func(msg string, isErr bool) {
		p.Send(notificationMsg{text: msg, isError: isErr})
	})
	a.SetOnElevationRequired(func(err error) {
		p.Send(elevationRequiredMsg{err: err})
	})
	a.SetOnDelayResult(func(r delay.Result) {
		p.Send(delayResultMsg{result: r})
	})
	a.NetInfo.SetOnChange(func() {
		p.Send(ipRefreshedMsg{})
	})

	return p
}
