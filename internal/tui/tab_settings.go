package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kestrel/internal/storage/models"
)

// Rows in the settings list: two engine toggles, then one row per stored
// subscription.
const (
	settingSystemProxy = 0
	settingEnhanced    = 1
	settingFixedRows   = 2
)

// settingsModel renders the engine toggles and the subscription list.
type settingsModel struct {
	cursor int
	subs   []*models.Subscription
	loaded bool
}

func newSettingsModel() settingsModel {
	return settingsModel{}
}

func (s *settingsModel) rowCount() int {
	return settingFixedRows + len(s.subs)
}

func (s *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	switch msg := msg.(type) {
	case subsLoadedMsg:
		if msg.err == nil {
			s.subs = msg.subs
			s.loaded = true
		}
		return nil

	case subUpdateResultMsg:
		// Reload so node counts and timestamps reflect the update.
		return loadSubscriptions(root.app)

	case tea.KeyMsg:
		return s.handleKey(msg, root)
	}
	return nil
}

func (s *settingsModel) handleKey(msg tea.KeyMsg, root *Model) tea.Cmd {
	if !s.loaded {
		s.loaded = true
		return loadSubscriptions(root.app)
	}

	switch {
	case key.Matches(msg, keys.Enter):
		switch s.cursor {
		case settingSystemProxy:
			return setSystemProxy(root.app, !root.status.SystemProxyEnabled)
		case settingEnhanced:
			return setEnhancedMode(root.app, !root.status.EnhancedModeEnabled)
		default:
			if sub := s.selectedSub(); sub != nil {
				return updateSubscription(root.app, sub.Name)
			}
		}

	case key.Matches(msg, keys.Update):
		if sub := s.selectedSub(); sub != nil {
			return updateSubscription(root.app, sub.Name)
		}

	case msg.String() == "up" || msg.String() == "k":
		if s.cursor > 0 {
			s.cursor--
		}

	case msg.String() == "down" || msg.String() == "j":
		if s.cursor < s.rowCount()-1 {
			s.cursor++
		}
	}
	return nil
}

func (s *settingsModel) selectedSub() *models.Subscription {
	idx := s.cursor - settingFixedRows
	if idx < 0 || idx >= len(s.subs) {
		return nil
	}
	return s.subs[idx]
}

func (s *settingsModel) View(root *Model) string {
	lines := []string{cardTitleStyle.Render("Engine")}

	lines = append(lines,
		s.toggleRow(settingSystemProxy, "System proxy", root.status.SystemProxyEnabled),
		s.toggleRow(settingEnhanced, "Enhanced mode (TUN)", root.status.EnhancedModeEnabled),
		"",
		cardTitleStyle.Render("Subscriptions"),
	)

	if len(s.subs) == 0 {
		lines = append(lines, dimStyle.Render("  none — add one with `kestrel sub add`"))
	}
	for i, sub := range s.subs {
		lines = append(lines, s.subRow(settingFixedRows+i, sub))
	}

	lines = append(lines, "", dimStyle.Render("  enter toggle/update · u update subscription"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (s *settingsModel) toggleRow(idx int, label string, on bool) string {
	state := dimStyle.Render("[ off ]")
	if on {
		state = successStyle.Render("[ on  ]")
	}
	line := fmt.Sprintf("  %-24s %s", label, state)
	if s.cursor == idx {
		return selectedRowStyle.Render("▸" + line[1:])
	}
	return line
}

func (s *settingsModel) subRow(idx int, sub *models.Subscription) string {
	updated := "never"
	if sub.LastUpdated != nil {
		updated = sub.LastUpdated.Format("2006-01-02 15:04")
	}
	auto := ""
	if sub.AutoUpdate {
		auto = dimStyle.Render(fmt.Sprintf(" auto/%s", (time.Duration(sub.UpdateInterval) * time.Second).String()))
	}
	line := fmt.Sprintf("  %-24s %3d nodes  updated %s%s",
		truncate(sub.Name, 24), len(sub.NodeURIs), updated, auto)
	if s.cursor == idx {
		return selectedRowStyle.Render("▸" + line[1:])
	}
	return line
}
