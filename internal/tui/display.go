package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Display runs a [Model] in a BubbleTea program and accepts writes from
// other goroutines.
//
// Writes sent before [Display.Run] starts block until the program is
// running. After the program exits they are discarded.
type Display struct {
	program *tea.Program
	targets map[string]bool
}

// NewDisplay creates a display for the given targets. Program options such
// as tea.WithAltScreen are passed through.
func NewDisplay(title string, ids []string, opts ...tea.ProgramOption) *Display {
	targets := make(map[string]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}
	return &Display{
		program: tea.NewProgram(NewModel(title, ids), opts...),
		targets: targets,
	}
}

// HasTarget reports whether the display has a row for id.
func (d *Display) HasTarget(id string) bool {
	return d.targets[id]
}

// SetText replaces the text of a row.
func (d *Display) SetText(id, text string) {
	if !d.targets[id] {
		return
	}
	d.program.Send(textMsg{id: id, text: text, at: time.Now()})
}

// ReportCycle records the outcome of a poll cycle in the footer.
func (d *Display) ReportCycle(seq uint64, err error) {
	d.program.Send(cycleMsg{seq: seq, err: err, at: time.Now()})
}

// Run blocks until the user quits or [Display.Quit] is called.
func (d *Display) Run() error {
	_, err := d.program.Run()
	return err
}

// Quit stops the program.
func (d *Display) Quit() {
	d.program.Quit()
}
