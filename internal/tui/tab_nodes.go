package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kestrel/internal/bridge"
	"kestrel/internal/delay"
)

// nodesModel renders proxy groups and their members with latency results.
// Delay values come from the tester's cache, so they survive tab switches
// and group navigation; only probes the user explicitly asks for run.
type nodesModel struct {
	width  int
	height int

	groups []bridge.NodeGroup

	groupIdx int
	nodeIdx  int
	offset   int

	pending int
}

func newNodesModel() nodesModel {
	return nodesModel{}
}

func (n *nodesModel) setSize(width, height int) {
	n.width = width
	n.height = height
}

func (n *nodesModel) setGroups(groups []bridge.NodeGroup) {
	n.groups = groups
	if n.groupIdx >= len(groups) {
		n.groupIdx = 0
		n.nodeIdx = 0
	}
	n.clamp()
}

func (n *nodesModel) noteResult(delay.Result) {
	if n.pending > 0 {
		n.pending--
	}
}

func (n *nodesModel) testing() bool {
	return n.pending > 0
}

func (n *nodesModel) current() (group bridge.NodeGroup, node string, ok bool) {
	if n.groupIdx >= len(n.groups) {
		return bridge.NodeGroup{}, "", false
	}
	g := n.groups[n.groupIdx]
	if n.nodeIdx >= len(g.Members) {
		return g, "", false
	}
	return g, g.Members[n.nodeIdx], true
}

func (n *nodesModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case key.Matches(keyMsg, keys.Enter):
		if g, node, ok := n.current(); ok {
			return selectNode(root.app, g.Name, node)
		}

	case key.Matches(keyMsg, keys.TestSingle):
		if _, node, ok := n.current(); ok && node != bridge.NodeDirect && node != bridge.NodeReject {
			if !root.app.Tester.InFlight(node) {
				n.pending++
			}
			root.app.Tester.Test(context.Background(), node)
		}

	case key.Matches(keyMsg, keys.TestAll):
		if g, _, ok := n.current(); ok {
			for _, member := range g.Members {
				if member == bridge.NodeDirect || member == bridge.NodeReject {
					continue
				}
				if !root.app.Tester.InFlight(member) {
					n.pending++
				}
			}
			root.app.Tester.TestAll(context.Background(), g.Members)
		}

	case keyMsg.String() == "up" || keyMsg.String() == "k":
		if n.nodeIdx > 0 {
			n.nodeIdx--
		}

	case keyMsg.String() == "down" || keyMsg.String() == "j":
		if g, _, _ := n.current(); n.nodeIdx < len(g.Members)-1 {
			n.nodeIdx++
		}

	case keyMsg.String() == "left":
		if n.groupIdx > 0 {
			n.groupIdx--
			n.nodeIdx = 0
			n.offset = 0
		}

	case keyMsg.String() == "right":
		if n.groupIdx < len(n.groups)-1 {
			n.groupIdx++
			n.nodeIdx = 0
			n.offset = 0
		}
	}

	n.clamp()
	return nil
}

func (n *nodesModel) clamp() {
	visible := n.visibleRows()
	if n.nodeIdx < n.offset {
		n.offset = n.nodeIdx
	}
	if n.nodeIdx >= n.offset+visible {
		n.offset = n.nodeIdx - visible + 1
	}
	if n.offset < 0 {
		n.offset = 0
	}
}

func (n *nodesModel) visibleRows() int {
	v := n.height - 3
	if v < 1 {
		v = 1
	}
	return v
}

func (n *nodesModel) View(root *Model) string {
	if len(n.groups) == 0 {
		return dimStyle.Render("  no proxy groups (engine stopped or profile has none)")
	}

	g := n.groups[n.groupIdx]

	// Group selector line.
	var tabs []string
	for i, grp := range n.groups {
		name := truncate(grp.Name, 18)
		if i == n.groupIdx {
			tabs = append(tabs, selectedRowStyle.Render("["+name+"]"))
		} else {
			tabs = append(tabs, dimStyle.Render(" "+name+" "))
		}
	}
	groupBar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := cardTitleStyle.Render(fmt.Sprintf("%s (%s)", g.Name, g.Type))
	if n.testing() {
		title += " " + root.spinner.View() + dimStyle.Render(fmt.Sprintf(" testing %d…", n.pending))
	}

	lines := []string{groupBar, title}

	visible := n.visibleRows()
	end := n.offset + visible
	if end > len(g.Members) {
		end = len(g.Members)
	}
	for i := n.offset; i < end; i++ {
		lines = append(lines, n.renderNode(root, g, g.Members[i], i == n.nodeIdx))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (n *nodesModel) renderNode(root *Model, g bridge.NodeGroup, name string, selected bool) string {
	marker := "  "
	if name == g.Now {
		marker = successStyle.Render("● ")
	}

	label := truncate(name, 40)

	var delayText string
	switch {
	case root.app.Tester.InFlight(name):
		delayText = dimStyle.Render("…")
	default:
		if r, ok := root.app.Tester.Result(name); ok {
			if r.Failed() {
				delayText = delayStyle(r.DelayMS).Render("timeout")
			} else {
				delayText = delayStyle(r.DelayMS).Render(fmt.Sprintf("%d ms", r.DelayMS))
			}
		} else {
			delayText = dimStyle.Render("-")
		}
	}

	line := fmt.Sprintf("%s%-42s %s", marker, label, delayText)
	if selected {
		return selectedRowStyle.Render("▸ ") + line
	}
	return "  " + line
}
