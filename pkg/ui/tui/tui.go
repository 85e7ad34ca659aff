package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"shortscraper/pkg/worker"
)

// TUI runs the worker dashboard
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard for the given workers. onQuit is called when
// the user quits while workers are still running.
func NewTUI(workerIDs []string, quota int, onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(workerIDs, quota)
	model.onQuit = onQuit
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the run finishes or the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Handle forwards a worker event; it matches the runner's progress hook
func (t *TUI) Handle(ev worker.Event) {
	t.Send(EventMsg{Event: ev})
}

// Finish tells the dashboard the run is over, which closes it
func (t *TUI) Finish(exitCode int) {
	t.Send(RunDoneMsg{ExitCode: exitCode})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
