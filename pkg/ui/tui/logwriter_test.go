package tui

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		level   string
		message string
		ok      bool
	}{
		{"blank", "  ", "", "", false},
		{"plain warning", `{"level":"warn","message":"Run timeout reached, workers were cancelled"}`, "WARN", "Run timeout reached, workers were cancelled", true},
		{"worker and error", `{"level":"error","worker":"w2","error":"disk full","message":"Batch spooled"}`, "ERROR", "[w2] Batch spooled: disk full", true},
		{"info", `{"level":"info","message":"Batch written"}`, "INFO", "Batch written", true},
		{"not json", "garbage", "WARN", "garbage", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, message, ok := decodeLogLine([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestLogWriter_ForwardsWarningsToDashboard(t *testing.T) {
	dashboard := NewTUI([]string{"w1"}, 5, nil,
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	done := make(chan error, 1)
	go func() { done <- dashboard.Start() }()

	w := dashboard.LogWriter()
	lines := `{"level":"info","message":"Batch written"}
{"level":"warn","message":"Screen too small, windows will overlap the edge"}
{"level":"error","worker":"w1","error":"disk full","message":"Sink write failed"}
`
	n, err := w.Write([]byte(lines))
	require.NoError(t, err)
	assert.Equal(t, len(lines), n)
	dashboard.LogInfo("Writing to %s", "out.csv")
	dashboard.Finish(0)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop")
	}

	logs := dashboard.model.Logs()
	require.Len(t, logs, 4)
	assert.Equal(t, "WARN", logs[0].Level)
	assert.Equal(t, "Screen too small, windows will overlap the edge", logs[0].Message)
	assert.Equal(t, "ERROR", logs[1].Level)
	assert.Equal(t, "[w1] Sink write failed: disk full", logs[1].Message)
	assert.Equal(t, "INFO", logs[2].Level)
	assert.Equal(t, "Writing to out.csv", logs[2].Message)
	assert.Contains(t, logs[3].Message, "exit code 0")

	finished, code := dashboard.model.Finished()
	assert.True(t, finished)
	assert.Zero(t, code)
}
