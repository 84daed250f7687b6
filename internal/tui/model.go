// Package tui implements the terminal display used by `serra watch`.
//
// It renders the same display targets as the web page, one row per target,
// using BubbleTea. Writes from the poller arrive as messages through
// [Display], which satisfies the poller's surface contract.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	refreshInterval = time.Second
	defaultWidth    = 80
	labelWidth      = 20
	valueWidth      = 12
)

// labels maps the well-known greenhouse targets to row labels. Other IDs
// are shown as-is.
var labels = map[string]string{
	"internal-temperature": "Temperature",
	"internal-humidity":    "Air humidity",
	"soil-humidity1":       "Soil humidity 1",
	"soil-humidity2":       "Soil humidity 2",
	"soil-humidity3":       "Soil humidity 3",
	"tank-status":          "Water tank",
	"internal-lighting":    "Lighting",
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type textMsg struct {
	id   string
	text string
	at   time.Time
}

type cycleMsg struct {
	seq uint64
	err error
	at  time.Time
}

// ── Model ────────────────────────────────────────────────────────────

type row struct {
	text      string
	updatedAt time.Time
}

// Model is the BubbleTea model for the terminal display.
type Model struct {
	title string
	ids   []string
	rows  map[string]row

	lastSeq   uint64
	lastErr   error
	lastCycle time.Time
	failures  int

	width int
	now   func() time.Time
}

// NewModel creates a model showing the given targets in order.
func NewModel(title string, ids []string) Model {
	if title == "" {
		title = "Serra"
	}
	rows := make(map[string]row, len(ids))
	for _, id := range ids {
		rows[id] = row{}
	}
	return Model{
		title: title,
		ids:   append([]string(nil), ids...),
		rows:  rows,
		width: defaultWidth,
		now:   time.Now,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh ticker that keeps the "ago" column current.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles key presses, resizes, ticks and poller writes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		return m, tickCmd()

	case textMsg:
		if _, ok := m.rows[msg.id]; !ok {
			return m, nil
		}
		// rows is shared between copies of the model; replace it so earlier
		// copies keep their view
		rows := make(map[string]row, len(m.rows))
		for k, v := range m.rows {
			rows[k] = v
		}
		rows[msg.id] = row{text: msg.text, updatedAt: msg.at}
		m.rows = rows

	case cycleMsg:
		m.lastSeq = msg.seq
		m.lastErr = msg.err
		m.lastCycle = msg.at
		if msg.err != nil {
			m.failures++
		}
	}

	return m, nil
}

// Text returns the current text of a target and whether it has been
// written.
func (m Model) Text(id string) (string, bool) {
	r, ok := m.rows[id]
	if !ok || r.updatedAt.IsZero() {
		return "", false
	}
	return r.text, true
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("22")
	colorTitleFg  = lipgloss.Color("156")
	colorBorder   = lipgloss.Color("65")
	colorLabel    = lipgloss.Color("252")
	colorValue    = lipgloss.Color("120")
	colorFallback = lipgloss.Color("220")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorCrit     = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

// View renders the title bar, one row per target and the status footer.
func (m Model) View() string {
	width := m.width
	if width < 40 {
		width = 40
	}

	sections := []string{m.renderTitleBar(width), m.renderRows(width)}
	if m.lastErr != nil {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(width).
			Padding(0, 1).
			Render(truncate(fmt.Sprintf("Error fetching data: %v", m.lastErr), width-2)))
	}
	sections = append(sections, m.renderFooter(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render(m.title)

	status := "waiting for first poll"
	if !m.lastCycle.IsZero() {
		status = fmt.Sprintf("cycle #%d %s", m.lastSeq, m.lastCycle.Format("15:04:05"))
	}
	right := lipgloss.NewStyle().Foreground(colorDim).Render(status)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderRows(width int) string {
	now := m.now()
	labelS := lipgloss.NewStyle().Foreground(colorLabel).Width(labelWidth)
	dimS := lipgloss.NewStyle().Foreground(colorDim)

	lines := make([]string, 0, len(m.ids))
	for _, id := range m.ids {
		r := m.rows[id]

		label := labelS.Render(truncate(labelFor(id), labelWidth))

		var value, ago string
		switch {
		case r.updatedAt.IsZero():
			value = dimS.Width(valueWidth).Render("-")
		case r.text == "N/A":
			value = lipgloss.NewStyle().Foreground(colorFallback).Width(valueWidth).Render(r.text)
		default:
			value = lipgloss.NewStyle().Foreground(colorValue).Bold(true).Width(valueWidth).Render(truncate(r.text, valueWidth))
		}
		if !r.updatedAt.IsZero() {
			ago = dimS.Render(humanize.RelTime(r.updatedAt, now, "ago", "from now"))
		}

		lines = append(lines, label+" "+value+" "+ago)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	left := dimS.Render(fmt.Sprintf("failed cycles: %s", humanize.Comma(int64(m.failures))))
	keys := dimS.Render("q") + keyS.Render(":quit")

	gap := width - lipgloss.Width(left) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + keys)
}

func labelFor(id string) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return id
}

func truncate(s string, w int) string {
	if len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-1] + "…"
}
