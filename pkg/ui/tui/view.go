package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"shortscraper/pkg/models"
)

const logo = `
┏━┓╻ ╻┏━┓┏━┓╺┳╸┏━┓┏━╸┏━┓┏━┓┏━┓┏━╸┏━┓
┗━┓┣━┫┃ ┃┣┳┛ ┃ ┗━┓┃  ┣┳┛┣━┫┣━┛┣╸ ┣┳┛
┗━┛╹ ╹┗━┛╹┗╸ ╹ ┗━┛┗━╸╹┗╸╹ ╹╹  ┗━╸╹┗╸`

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		m.renderStatsPanel(m.width - 2),
		m.renderWorkersPanel(m.width - 2),
		m.renderLogsPanel(m.width - 2),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderStatsPanel renders the run totals
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	collected, quota, errors := m.Totals()
	elapsed := time.Since(m.sessionStartTime)
	rate := 0.0
	if elapsed.Minutes() > 0 {
		rate = float64(collected) / elapsed.Minutes()
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Collected:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", collected, quota))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/min", rate))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Errors:"), statsValueStyle.Render(fmt.Sprintf("%d", errors))),
	}
	if done, code := m.Finished(); done {
		stats = append(stats, successStyle.Render(fmt.Sprintf("Finished (exit %d)", code)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(stats, "   ")),
	)
}

// renderWorkersPanel renders one line per worker with a quota bar
func (m *Model) renderWorkersPanel(width int) string {
	title := titleStyle.Render(" WORKERS ")

	rows := m.Rows()
	if len(rows) == 0 {
		content := dimStyle.Render("No workers")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	bar := m.bar
	bar.Width = width / 3

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		icon := m.spinner.View()
		if r.Done {
			icon = successStyle.Render("✓")
			if r.State == models.StateErrorTerminated {
				icon = errorStyle.Render("✗")
			}
		}

		status := StateStyle(r.State).Render(r.State.String())
		if r.Done && r.Reason != "" {
			status += dimStyle.Render(" (" + string(r.Reason) + ")")
		}

		line := fmt.Sprintf("%s %s %s %3d/%-3d %s",
			icon,
			workerIDStyle.Render(r.ID),
			bar.ViewAs(r.Fraction()),
			r.Collected,
			r.Quota,
			status,
		)
		if r.Errors > 0 {
			line += warningStyle.Render(fmt.Sprintf(" %d err", r.Errors))
		}
		if r.LastItem != "" && !r.Done {
			line += dimStyle.Render(" " + r.LastItem)
		}
		lines = append(lines, line)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" EVENTS ")

	msgs := m.Logs()
	start := len(msgs) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	maxMsgLen := width - 25
	for _, log := range msgs[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		text := log.Message
		if maxMsgLen > 3 && len(text) > maxMsgLen {
			text = text[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No events yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the workers and quit
    ctrl+l   - Clear the event log
    ?        - Toggle this help

  Worker states:
    ` + successStyle.Render("Looping") + `     - Collecting
    ` + warningStyle.Render("Draining") + `    - Writing collected items
    ` + errorStyle.Render("ErrorTerminated") + ` - Stopped on a failure
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as a clock
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
