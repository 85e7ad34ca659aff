package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// LogWriter returns a writer for JSON log lines. Warnings and errors are
// shown in the dashboard's event panel; lower levels are dropped since the
// worker rows already show progress.
func (t *TUI) LogWriter() io.Writer {
	return logWriter{tui: t}
}

type logWriter struct {
	tui *TUI
}

func (w logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		level, message, ok := decodeLogLine(line)
		if !ok {
			continue
		}
		switch level {
		case "WARN":
			w.tui.LogWarning("%s", message)
		case "ERROR", "FATAL", "PANIC":
			w.tui.LogError("%s", message)
		}
	}
	return len(p), nil
}

// decodeLogLine turns one zerolog JSON line into a level and a short message
// prefixed with the worker id and followed by the error, when present
func decodeLogLine(line []byte) (string, string, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", "", false
	}

	var entry struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Worker  string `json:"worker"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(line, &entry); err != nil {
		return "WARN", string(line), true
	}

	message := entry.Message
	if entry.Worker != "" {
		message = fmt.Sprintf("[%s] %s", entry.Worker, message)
	}
	if entry.Error != "" {
		message += ": " + entry.Error
	}
	return strings.ToUpper(entry.Level), message, true
}
