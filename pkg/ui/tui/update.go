package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"shortscraper/pkg/worker"
)

// EventMsg carries a worker progress event into the program
type EventMsg struct {
	Event worker.Event
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// RunDoneMsg is sent once every worker has joined
type RunDoneMsg struct {
	ExitCode int
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case EventMsg:
		m.ApplyEvent(msg.Event)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case RunDoneMsg:
		m.mu.Lock()
		m.finished = true
		m.exitCode = msg.ExitCode
		m.mu.Unlock()
		m.AddLogMessage("INFO", fmt.Sprintf("Run finished with exit code %d", msg.ExitCode))
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if done, _ := m.Finished(); !done && m.onQuit != nil {
			m.AddLogMessage("WARN", "Stopping workers")
			m.onQuit()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
