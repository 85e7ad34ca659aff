package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ForWorker returns l scoped to one worker
func ForWorker(l Logger, workerID string) Logger {
	if l == nil {
		l = GetLogger()
	}
	return l.WithField("worker", workerID)
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogWorkerProgress logs one collected item against the worker's quota
func LogWorkerProgress(l Logger, itemID string, collected, quota int) {
	percentage := 0.0
	if quota > 0 {
		percentage = float64(collected) / float64(quota) * 100
	}
	l.WithFields(map[string]interface{}{
		"item_id":    itemID,
		"collected":  collected,
		"quota":      quota,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Item collected")
}

// LogTransition logs a worker state change
func LogTransition(l Logger, from, to fmt.Stringer, reason string) {
	fields := map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	}
	if reason != "" {
		fields["reason"] = reason
	}
	l.DebugWithFields("State transition", fields)
}

// LogMetrics logs run metrics
func LogMetrics(operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	GetLogger().InfoWithFields("Run metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
