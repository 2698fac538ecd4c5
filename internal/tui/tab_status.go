package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// statusModel renders the dashboard: engine card, traffic chart, live
// aggregates and the machine's IP addresses. It holds no data of its own;
// everything comes from the root model's store projections.
type statusModel struct{}

func newStatusModel() statusModel {
	return statusModel{}
}

func (s *statusModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case key.Matches(keyMsg, keys.Enter):
		// Re-resolve both IP slots; stale lookups discard themselves.
		root.app.NetInfo.RefreshPublic(context.Background())
		root.app.NetInfo.RefreshLocal(context.Background())
	}
	return nil
}

func (s *statusModel) View(root *Model) string {
	cardWidth := root.width/2 - 4
	if cardWidth < 30 {
		cardWidth = 30
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		s.engineCard(root, cardWidth),
		s.networkCard(root, cardWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		s.trafficCard(root, cardWidth),
		s.statsCard(root, cardWidth),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (s *statusModel) engineCard(root *Model, width int) string {
	st := root.status

	state := errorStyle.Render("stopped")
	if st.Running {
		state = successStyle.Render("running")
	}

	mode := string(st.Mode)
	if mode == "" {
		mode = "-"
	}

	ports := "-"
	if st.Running {
		if st.Ports.Mixed > 0 {
			ports = fmt.Sprintf("mixed %d", st.Ports.Mixed)
		} else {
			ports = fmt.Sprintf("http %d / socks %d", st.Ports.HTTP, st.Ports.Socks)
		}
	}

	rows := []string{
		cardLabelStyle.Render("State") + state,
		cardLabelStyle.Render("Mode") + cardValueStyle.Render(mode),
		cardLabelStyle.Render("Ports") + cardValueStyle.Render(ports),
		cardLabelStyle.Render("System proxy") + cardValueStyle.Render(onOff(st.SystemProxyEnabled)),
		cardLabelStyle.Render("Enhanced mode") + cardValueStyle.Render(onOff(st.EnhancedModeEnabled)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Engine")}, rows...)...)
	return cardStyle.Width(width).Render(content)
}

func (s *statusModel) trafficCard(root *Model, width int) string {
	up, down := trafficSeries(root.samples)

	var curUp, curDown uint64
	if n := len(root.samples); n > 0 {
		curUp = root.samples[n-1].Up
		curDown = root.samples[n-1].Down
	}

	chartWidth := width - 8
	if chartWidth < 10 {
		chartWidth = 10
	}

	rows := []string{
		cardLabelStyle.Render("Upload") + cardValueStyle.Render(formatBytes(curUp)+"/s"),
		sparkUpStyle.Render("  ↑ " + sparkline(up, chartWidth)),
		cardLabelStyle.Render("Download") + cardValueStyle.Render(formatBytes(curDown)+"/s"),
		sparkDownStyle.Render("  ↓ " + sparkline(down, chartWidth)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Traffic")}, rows...)...)
	return cardStyle.Width(width).Render(content)
}

func (s *statusModel) statsCard(root *Model, width int) string {
	stats := root.stats

	rows := []string{
		cardLabelStyle.Render("Connections") + cardValueStyle.Render(fmt.Sprintf("%d", stats.Connections)),
		cardLabelStyle.Render("Processes") + cardValueStyle.Render(fmt.Sprintf("%d", stats.Processes)),
		cardLabelStyle.Render("Uploaded") + cardValueStyle.Render(formatBytes(stats.TotalUpload)),
		cardLabelStyle.Render("Downloaded") + cardValueStyle.Render(formatBytes(stats.TotalDownload)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Activity")}, rows...)...)
	return cardStyle.Width(width).Render(content)
}

func (s *statusModel) networkCard(root *Model, width int) string {
	rows := []string{
		cardLabelStyle.Render("Public IP") + ipValue(root, true),
		cardLabelStyle.Render("Local IP") + ipValue(root, false),
		dimStyle.Render("  enter to re-resolve"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Network")}, rows...)...)
	return cardStyle.Width(width).Render(content)
}

func ipValue(root *Model, public bool) string {
	info := root.app.NetInfo.Local()
	if public {
		info = root.app.NetInfo.Public()
	}
	switch {
	case info.Pending:
		return dimStyle.Render("resolving…")
	case info.Err != nil:
		return errorStyle.Render("unavailable")
	case info.Value == "":
		return dimStyle.Render("-")
	}
	return cardValueStyle.Render(info.Value)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
