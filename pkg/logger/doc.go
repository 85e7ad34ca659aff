// Package logger provides the structured logging interface used across shortscraper.
//
// It wraps zerolog behind the Logger interface so that workers, the sink and
// the CLI can log with fields without depending on zerolog directly. Console
// output is colored when writing to a terminal; a log file, when configured,
// receives JSON lines.
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.ForWorker(logger.GetLogger(), "acc1")
//	log.WithField("item_id", id).Info("Item collected")
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
