// Package report writes the per-run JSON report next to the CSV output.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shortscraper/pkg/layout"
	"shortscraper/pkg/models"
)

// Suffix is appended to the CSV path to name the report
const Suffix = ".report.json"

// Totals aggregates the worker summaries
type Totals struct {
	Workers      int `json:"workers"`
	Collected    int `json:"collected"`
	Written      int `json:"written"`
	Duplicates   int `json:"duplicates"`
	Errors       int `json:"errors"`
	Iterations   int `json:"iterations"`
	Failed       int `json:"failed"`
	SinkFailures int `json:"sink_failures"`
	Spooled      int `json:"spooled"`
}

// Report is everything known about one run
type Report struct {
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
	Duration string                 `json:"duration"`
	Output   string                 `json:"output"`
	Layout   layout.Plan            `json:"layout"`
	Clamped  bool                   `json:"layout_clamped,omitempty"`
	TimedOut bool                   `json:"timed_out,omitempty"`
	Workers  []models.WorkerSummary `json:"workers"`
	Totals   Totals                 `json:"totals"`
	ExitCode int                    `json:"exit_code"`
}

// PathFor returns the report path for a CSV output
func PathFor(csvPath string) string {
	return csvPath + Suffix
}

// Summarize adds up the worker summaries
func Summarize(workers []models.WorkerSummary) Totals {
	t := Totals{Workers: len(workers)}
	for _, w := range workers {
		t.Collected += w.Collected
		t.Written += w.Written
		t.Duplicates += w.Duplicates
		t.Errors += w.Errors
		t.Iterations += w.Iterations
		if w.FinalState == models.StateErrorTerminated {
			t.Failed++
		}
		if w.SinkFailed() {
			t.SinkFailures++
		}
		if w.SpoolPath != "" {
			t.Spooled++
		}
	}
	return t
}

// New builds a report and fills in its totals and duration
func New(output string, plan layout.Plan, workers []models.WorkerSummary, started, finished time.Time) *Report {
	return &Report{
		Started:  started,
		Finished: finished,
		Duration: finished.Sub(started).Round(time.Millisecond).String(),
		Output:   output,
		Layout:   plan,
		Workers:  workers,
		Totals:   Summarize(workers),
	}
}

// Save writes the report atomically
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// Load reads a report
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}
