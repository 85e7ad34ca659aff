package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortscraper/pkg/config"
	"shortscraper/pkg/models"
	"shortscraper/pkg/worker"
)

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifier_RunFinished(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     string
	}{
		{"success", 0, "Run complete: 12 items written by 3 workers"},
		{"no output", 2, "without collecting anything"},
		{"sink failed", 3, "check the spool"},
		{"misconfig", 1, "exit code 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sender := &recordingSender{err: errors.New("no notification daemon")}
			n := NewNotifierWithSender(&buf, sender)

			n.RunFinished(tt.exitCode, 12, 3)

			assert.Contains(t, buf.String(), tt.want)
			require.Len(t, sender.messages, 1)
			assert.Contains(t, sender.messages[0], tt.want)
		})
	}
}

func TestNewNotifier_Modes(t *testing.T) {
	n := NewNotifier(config.NotificationConfig{Enabled: true, Type: "none"})
	assert.False(t, n.enabled)

	n = NewNotifier(config.NotificationConfig{Enabled: true, Type: "terminal"})
	assert.True(t, n.enabled)
	assert.Nil(t, n.sender)

	n = NewNotifier(config.NotificationConfig{Enabled: false, Type: "desktop"})
	assert.False(t, n.enabled)
}

func TestNotifier_DisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	n := &Notifier{out: &buf}
	n.SendSuccess("title", "message")
	assert.Empty(t, buf.String())
}

func TestProgressDisplay_Handle(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, false)

	p.Handle(worker.Event{WorkerID: "w1", Kind: worker.EventItem, State: models.StateLooping, Collected: 2, Quota: 5})
	p.Handle(worker.Event{WorkerID: "w2", Kind: worker.EventError, State: models.StateLooping, Collected: 1, Quota: 5, Errors: 1})
	p.Handle(worker.Event{WorkerID: "w1", Kind: worker.EventItem, State: models.StateLooping, Collected: 3, Quota: 5})

	collected, quota, errs := p.Totals()
	assert.Equal(t, 4, collected)
	assert.Equal(t, 10, quota)
	assert.Equal(t, 1, errs)

	out := buf.String()
	assert.Contains(t, out, "4/10")
	assert.Contains(t, out, "w1 3/5")
	assert.Contains(t, out, "1 errors")
}

func TestProgressDisplay_Debug(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, true)

	p.Handle(worker.Event{WorkerID: "w1", Kind: worker.EventItem, ItemID: "abc123", Collected: 1, Quota: 5})
	p.Handle(worker.Event{WorkerID: "w1", Kind: worker.EventError, Message: "marker timeout"})
	p.Handle(worker.Event{WorkerID: "w1", Kind: worker.EventDone, Reason: models.ReasonQuotaReached})
	p.Complete()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "abc123")
	assert.Contains(t, lines[1], "marker timeout")
	assert.Contains(t, lines[2], "quota reached")
}

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat(ProgressEmpty, 10), Bar(0, 5, 10))
	assert.Equal(t, strings.Repeat(ProgressBar, 5)+strings.Repeat(ProgressEmpty, 5), Bar(1, 2, 10))
	assert.Equal(t, strings.Repeat(ProgressBar, 10), Bar(7, 5, 10))
	assert.Equal(t, strings.Repeat(ProgressEmpty, 4), Bar(3, 0, 4))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestRenderSummary(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	workers := []models.WorkerSummary{
		{WorkerID: "w1", Collected: 5, Written: 4, Duplicates: 1, Iterations: 6, FinalState: models.StateTerminated, Reason: models.ReasonQuotaReached, Started: start, Finished: start.Add(2 * time.Minute)},
		{WorkerID: "w2", FinalState: models.StateErrorTerminated, Reason: models.ReasonDriverInit, Err: "chrome not found", Started: start, Finished: start},
	}

	var buf bytes.Buffer
	RenderSummary(&buf, workers)
	out := buf.String()

	assert.Contains(t, out, "w1")
	assert.Contains(t, out, "quota reached")
	assert.Contains(t, out, "driver init failed: chrome not found")
	assert.Contains(t, out, "2m0s")
	assert.Contains(t, out, "ErrorTerminated")
	assert.Contains(t, out, "TOTAL")
}
