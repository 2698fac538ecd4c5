package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kestrel/internal/bridge"
	"kestrel/internal/query"
	"kestrel/internal/store"
)

// sortCycle is the order the sort key steps through on each press.
var sortCycle = []struct {
	key   query.SortKey
	order query.SortOrder
}{
	{query.SortByTime, query.Descending},
	{query.SortByTime, query.Ascending},
	{query.SortByTraffic, query.Descending},
	{query.SortByHost, query.Ascending},
	{query.SortByProcess, query.Ascending},
}

// connsModel renders live connections and the closed-connection history.
// Filtering and ordering are pure projections over the root's snapshots; the
// model owns only view state (cursor, search text, sort choice).
type connsModel struct {
	width  int
	height int

	searching   bool
	search      textinput.Model
	showHistory bool
	sortIdx     int

	cursor int
	offset int
}

func newConnsModel() connsModel {
	ti := textinput.New()
	ti.Placeholder = "host, process, rule…"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	return connsModel{search: ti}
}

func (c *connsModel) setSize(width, height int) {
	c.width = width
	c.height = height
	c.search.Width = width - 8
}

// connRow is one display row: a record plus its liveness in history view.
type connRow struct {
	bridge.ConnectionRecord
	active bool
}

// rows computes the visible rows from the root's snapshots.
func (c *connsModel) rows(root *Model) []connRow {
	keywords := strings.Fields(c.search.Value())
	sorter := sortCycle[c.sortIdx]

	if !c.showHistory {
		filtered := query.FilterSort(root.live, "", keywords, sorter.key, sorter.order)
		out := make([]connRow, len(filtered))
		for i, r := range filtered {
			out[i] = connRow{ConnectionRecord: r, active: true}
		}
		return out
	}

	records := make([]bridge.ConnectionRecord, len(root.history))
	activeByID := make(map[string]bool, len(root.history))
	for i, e := range root.history {
		records[i] = e.ConnectionRecord
		activeByID[e.ID] = e.Active
	}
	filtered := query.FilterSort(records, "", keywords, sorter.key, sorter.order)
	out := make([]connRow, len(filtered))
	for i, r := range filtered {
		out[i] = connRow{ConnectionRecord: r, active: activeByID[r.ID]}
	}
	return out
}

func (c *connsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	if c.searching {
		switch keyMsg.String() {
		case "enter", "esc":
			c.searching = false
			c.search.Blur()
			return nil
		}
		var cmd tea.Cmd
		c.search, cmd = c.search.Update(keyMsg)
		c.cursor = 0
		c.offset = 0
		return cmd
	}

	rows := c.rows(root)

	switch {
	case key.Matches(keyMsg, keys.Search):
		c.searching = true
		return c.search.Focus()

	case key.Matches(keyMsg, keys.ShowHistory):
		c.showHistory = !c.showHistory
		c.cursor = 0
		c.offset = 0

	case key.Matches(keyMsg, keys.Sort):
		c.sortIdx = (c.sortIdx + 1) % len(sortCycle)

	case key.Matches(keyMsg, keys.CloseConn):
		if c.cursor < len(rows) && rows[c.cursor].active {
			return closeConnection(root.app, rows[c.cursor].ID)
		}

	case key.Matches(keyMsg, keys.CloseAll):
		return closeAllConnections(root.app)

	case key.Matches(keyMsg, keys.ClearHistory):
		root.app.Store.ClearHistory()

	case keyMsg.String() == "up" || keyMsg.String() == "k":
		if c.cursor > 0 {
			c.cursor--
		}

	case keyMsg.String() == "down" || keyMsg.String() == "j":
		if c.cursor < len(rows)-1 {
			c.cursor++
		}

	case keyMsg.String() == "esc":
		c.search.SetValue("")
		c.cursor = 0
		c.offset = 0
	}

	c.clampScroll(len(rows))
	return nil
}

func (c *connsModel) clampScroll(total int) {
	visible := c.visibleRows()
	if c.cursor >= total {
		c.cursor = total - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if c.cursor >= c.offset+visible {
		c.offset = c.cursor - visible + 1
	}
}

func (c *connsModel) visibleRows() int {
	// Title, column header and optional search line sit above the rows.
	v := c.height - 3
	if v < 1 {
		v = 1
	}
	return v
}

func (c *connsModel) View(root *Model) string {
	rows := c.rows(root)

	title := "Live connections"
	if c.showHistory {
		title = fmt.Sprintf("Connection history (%d closed kept)", closedCount(root.history))
	}
	sorter := sortCycle[c.sortIdx]
	title += dimStyle.Render(fmt.Sprintf("  sort: %s %s", sorter.key, sorter.order))

	var lines []string
	lines = append(lines, cardTitleStyle.Render(title))

	if c.searching || c.search.Value() != "" {
		lines = append(lines, c.search.View())
	}

	lines = append(lines, c.headerRow())

	visible := c.visibleRows()
	end := c.offset + visible
	if end > len(rows) {
		end = len(rows)
	}
	if len(rows) == 0 {
		lines = append(lines, dimStyle.Render("  no connections"))
	}
	for i := c.offset; i < end; i++ {
		lines = append(lines, c.renderRow(rows[i], i == c.cursor, root))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (c *connsModel) headerRow() string {
	return dimStyle.Render(fmt.Sprintf("  %-28s %-14s %-16s %-10s %-10s %s",
		"HOST", "PROCESS", "RULE", "UP", "DOWN", "AGE"))
}

func (c *connsModel) renderRow(row connRow, selected bool, root *Model) string {
	age := "-"
	if !row.StartedAt.IsZero() && !root.now.IsZero() && root.now.After(row.StartedAt) {
		age = formatDuration(root.now.Sub(row.StartedAt))
	}

	rule := row.Rule
	if row.RulePayload != "" {
		rule += "(" + row.RulePayload + ")"
	}

	line := fmt.Sprintf("  %-28s %-14s %-16s %-10s %-10s %s",
		truncate(row.Host, 28),
		truncate(row.Process, 14),
		truncate(rule, 16),
		formatBytes(row.Upload),
		formatBytes(row.Download),
		age,
	)

	switch {
	case selected:
		return selectedRowStyle.Render("▸" + line[1:])
	case !row.active:
		return closedRowStyle.Render(line)
	default:
		return line
	}
}

func closedCount(entries []store.HistoryEntry) int {
	n := 0
	for _, e := range entries {
		if !e.Active {
			n++
		}
	}
	return n
}
