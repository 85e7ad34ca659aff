package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shortscraper/pkg/models"
	"shortscraper/pkg/worker"
)

// WorkerRow is the dashboard's view of one worker
type WorkerRow struct {
	ID        string
	State     models.SessionState
	Reason    models.StopReason
	Collected int
	Quota     int
	Errors    int
	LastItem  string
	Done      bool
	Written   int
	UpdatedAt time.Time
}

// Fraction is the share of the quota collected, capped at 1
func (r WorkerRow) Fraction() float64 {
	if r.Quota <= 0 {
		return 0
	}
	f := float64(r.Collected) / float64(r.Quota)
	if f > 1 {
		return 1
	}
	return f
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model of the worker dashboard
type Model struct {
	// UI components
	spinner spinner.Model
	bar     progress.Model

	workers map[string]*WorkerRow
	order   []string

	sessionStartTime time.Time
	finished         bool
	exitCode         int

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// called when the user quits before the run is over
	onQuit func()

	mu sync.RWMutex
}

// NewModel creates a dashboard with one row per worker id
func NewModel(workerIDs []string, quota int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	m := &Model{
		spinner:          s,
		bar:              progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		workers:          make(map[string]*WorkerRow),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
	for _, id := range workerIDs {
		m.workers[id] = &WorkerRow{ID: id, Quota: quota}
		m.order = append(m.order, id)
	}
	return m
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// ApplyEvent folds a worker event into the matching row
func (m *Model) ApplyEvent(ev worker.Event) {
	m.mu.Lock()
	row, ok := m.workers[ev.WorkerID]
	if !ok {
		row = &WorkerRow{ID: ev.WorkerID}
		m.workers[ev.WorkerID] = row
		m.order = append(m.order, ev.WorkerID)
	}
	row.State = ev.State
	row.Collected = ev.Collected
	row.Errors = ev.Errors
	row.UpdatedAt = ev.At
	if ev.Quota > 0 {
		row.Quota = ev.Quota
	}
	m.mu.Unlock()

	switch ev.Kind {
	case worker.EventItem:
		m.mu.Lock()
		row.LastItem = ev.ItemID
		m.mu.Unlock()
	case worker.EventError:
		m.AddLogMessage("WARN", fmt.Sprintf("%s: %s", ev.WorkerID, ev.Message))
	case worker.EventState:
		m.AddLogMessage("INFO", fmt.Sprintf("%s is %s", ev.WorkerID, ev.State))
	case worker.EventDone:
		m.mu.Lock()
		row.Done = true
		row.Reason = ev.Reason
		if ev.Summary != nil {
			row.Reason = ev.Summary.Reason
			row.Written = ev.Summary.Written
		}
		reason := row.Reason
		m.mu.Unlock()

		level := "SUCCESS"
		if ev.State == models.StateErrorTerminated {
			level = "ERROR"
		}
		m.AddLogMessage(level, fmt.Sprintf("%s finished: %s", ev.WorkerID, reason))
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Rows returns a snapshot of the worker rows in display order
func (m *Model) Rows() []WorkerRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]WorkerRow, 0, len(m.order))
	for _, id := range m.order {
		rows = append(rows, *m.workers[id])
	}
	return rows
}

// Totals returns the summed collected count, quota and errors
func (m *Model) Totals() (collected, quota, errors int) {
	for _, r := range m.Rows() {
		collected += r.Collected
		quota += r.Quota
		errors += r.Errors
	}
	return collected, quota, errors
}

// AllDone reports whether every known worker has finished
func (m *Model) AllDone() bool {
	rows := m.Rows()
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if !r.Done {
			return false
		}
	}
	return true
}

// Logs returns a copy of the retained log messages
func (m *Model) Logs() []LogMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LogMessage(nil), m.logMessages...)
}

// Finished reports whether the run is over and its exit code
func (m *Model) Finished() (bool, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.finished, m.exitCode
}
