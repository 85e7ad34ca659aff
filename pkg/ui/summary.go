package ui

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"shortscraper/pkg/models"
	"shortscraper/pkg/report"
)

// NewTable returns a rounded table that renders to out
func NewTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// RenderSummary prints one row per worker plus a totals footer
func RenderSummary(out io.Writer, workers []models.WorkerSummary) {
	t := NewTable(out)
	t.AppendHeader(table.Row{"Worker", "Collected", "Written", "Duplicates", "Errors", "Iterations", "Duration", "State", "Reason"})

	for _, w := range workers {
		reason := string(w.Reason)
		if w.Err != "" {
			reason += ": " + w.Err
		}
		t.AppendRow(table.Row{
			w.WorkerID,
			w.Collected,
			w.Written,
			w.Duplicates,
			w.Errors,
			w.Iterations,
			FormatDuration(w.Duration()),
			w.FinalState.String(),
			reason,
		})
	}

	totals := report.Summarize(workers)
	t.AppendFooter(table.Row{"Total", totals.Collected, totals.Written, totals.Duplicates, totals.Errors, totals.Iterations, "", "", ""})
	t.Render()
}
