package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var ids = []string{"internal-temperature", "tank-status", "custom-probe"}

func fixedModel(now time.Time) Model {
	m := NewModel("Serra Test", ids)
	m.now = func() time.Time { return now }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm
}

func TestNewModel_DefaultTitle(t *testing.T) {
	m := NewModel("", ids)
	if m.title != "Serra" {
		t.Errorf("title = %q, want Serra", m.title)
	}
}

func TestModel_TextMsgUpdatesRow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := fixedModel(now)

	m = update(t, m, textMsg{id: "internal-temperature", text: "22.5", at: now.Add(-3 * time.Second)})

	text, ok := m.Text("internal-temperature")
	if !ok || text != "22.5" {
		t.Fatalf("Text() = %q, %v, want 22.5, true", text, ok)
	}

	view := m.View()
	if !strings.Contains(view, "22.5") {
		t.Errorf("View() missing value:\n%s", view)
	}
	if !strings.Contains(view, "3 seconds ago") {
		t.Errorf("View() missing relative time:\n%s", view)
	}
	if !strings.Contains(view, "Temperature") {
		t.Errorf("View() missing label:\n%s", view)
	}
	if !strings.Contains(view, "custom-probe") {
		t.Errorf("View() should fall back to the id as label:\n%s", view)
	}
}

func TestModel_TextMsgUnknownIgnored(t *testing.T) {
	m := fixedModel(time.Now())

	m = update(t, m, textMsg{id: "soil-humidity3", text: "40%", at: time.Now()})

	if _, ok := m.Text("soil-humidity3"); ok {
		t.Error("unknown target should not be added")
	}
}

func TestModel_UpdateDoesNotMutatePrevious(t *testing.T) {
	m := fixedModel(time.Now())
	before := m

	_ = update(t, m, textMsg{id: "tank-status", text: "OK", at: time.Now()})

	if _, ok := before.Text("tank-status"); ok {
		t.Error("earlier model copy observed a later write")
	}
}

func TestModel_Unwritten(t *testing.T) {
	m := fixedModel(time.Now())

	if _, ok := m.Text("tank-status"); ok {
		t.Error("Text() ok = true before any write")
	}
	if !strings.Contains(m.View(), "waiting for first poll") {
		t.Errorf("View() should show waiting status:\n%s", m.View())
	}
}

func TestModel_CycleMsg(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := fixedModel(now)

	m = update(t, m, cycleMsg{seq: 4, err: errors.New("request failed: connection refused"), at: now})

	if m.failures != 1 {
		t.Errorf("failures = %d, want 1", m.failures)
	}
	view := m.View()
	if !strings.Contains(view, "cycle #4") {
		t.Errorf("View() missing cycle number:\n%s", view)
	}
	if !strings.Contains(view, "Error fetching data:") {
		t.Errorf("View() missing error line:\n%s", view)
	}

	m = update(t, m, cycleMsg{seq: 5, at: now})
	if m.lastErr != nil {
		t.Error("successful cycle should clear the error")
	}
	if m.failures != 1 {
		t.Errorf("failures = %d, want 1 after a success", m.failures)
	}
	if strings.Contains(m.View(), "Error fetching data:") {
		t.Error("View() still shows error after a successful cycle")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		t.Run(key.String(), func(t *testing.T) {
			_, cmd := fixedModel(time.Now()).Update(key)
			if cmd == nil {
				t.Fatal("expected a command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("expected tea.QuitMsg")
			}
		})
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := update(t, fixedModel(time.Now()), tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 {
		t.Errorf("width = %d, want 120", m.width)
	}
}

func TestModel_TickReschedules(t *testing.T) {
	_, cmd := fixedModel(time.Now()).Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestDisplay_HasTarget(t *testing.T) {
	d := NewDisplay("Serra", ids)

	if !d.HasTarget("tank-status") {
		t.Error("HasTarget(tank-status) = false")
	}
	if d.HasTarget("internal-lighting") {
		t.Error("HasTarget(internal-lighting) = true")
	}

	// writes to unknown targets return without touching the program
	d.SetText("internal-lighting", "300")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		w    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"much too long", 6, "much …"},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.w); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.w, got, tt.want)
		}
	}
}
