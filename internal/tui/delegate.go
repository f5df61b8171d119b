package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"procview/internal/presenter"
	"procview/internal/registry"
)

var (
	styleNormal   = lipgloss.NewStyle()
	styleAdded    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleRemoving = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Strikethrough(true)
	styleChanged  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleCursor   = lipgloss.NewStyle().Reverse(true)
	styleHeader   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true)
)

func stateStyle(s presenter.VisualState) lipgloss.Style {
	switch s {
	case presenter.RecentlyAdded:
		return styleAdded
	case presenter.PendingRemoval:
		return styleRemoving
	case presenter.Changed:
		return styleChanged
	default:
		return styleNormal
	}
}

type column struct {
	title string
	width int // zero takes the remaining width
	value func(registry.Snapshot) string
}

var processColumns = []column{
	{"PID", 8, func(s registry.Snapshot) string { return strconv.Itoa(s.PID) }},
	{"PPID", 8, func(s registry.Snapshot) string { return strconv.Itoa(s.PPID) }},
	{"ST", 4, func(s registry.Snapshot) string { return s.State }},
	{"NAME", 18, func(s registry.Snapshot) string { return s.Name }},
	{"COMMAND", 0, func(s registry.Snapshot) string { return s.Cmd }},
}

var serviceColumns = []column{
	{"UNIT", 32, func(s registry.Snapshot) string { return s.Key }},
	{"STATE", 18, func(s registry.Snapshot) string { return s.State }},
	{"PID", 8, func(s registry.Snapshot) string {
		if s.PID == 0 {
			return "-"
		}
		return strconv.Itoa(s.PID)
	}},
	{"DESCRIPTION", 0, func(s registry.Snapshot) string { return s.Description }},
}

func columnsFor(kind registry.Kind) []column {
	if kind == registry.KindService {
		return serviceColumns
	}
	return processColumns
}

// formatColumns lays out one line no wider than width, truncating by
// display cells so wide runes do not break alignment.
func formatColumns(cols []column, width int, cell func(column) string) string {
	var b strings.Builder
	used := 0
	for i, col := range cols {
		w := col.width
		if w == 0 || i == len(cols)-1 {
			w = width - used
		}
		if w <= 0 {
			break
		}
		text := runewidth.Truncate(cell(col), w-1, "…")
		if i < len(cols)-1 {
			text = runewidth.FillRight(text, w)
		}
		b.WriteString(text)
		used += w
	}
	return b.String()
}

func headerLine(kind registry.Kind, width int) string {
	return styleHeader.Render(formatColumns(columnsFor(kind), width, func(c column) string { return c.title }))
}

// rowDelegate renders one entity per line, styled by its visual state.
type rowDelegate struct{}

func (rowDelegate) Height() int                             { return 1 }
func (rowDelegate) Spacing() int                            { return 0 }
func (rowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (rowDelegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	r, ok := li.(row)
	if !ok {
		return
	}
	width := m.Width()
	if width <= 0 {
		width = 80
	}
	snap := r.item.Snapshot
	line := formatColumns(columnsFor(r.kind), width, func(c column) string { return c.value(snap) })
	style := stateStyle(r.item.State)
	if index == m.Index() {
		style = style.Inherit(styleCursor)
	}
	fmt.Fprint(w, style.Render(line))
}
