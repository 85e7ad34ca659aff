// Package errors defines the failure taxonomy shared by the scraping pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a pipeline failure by how far its effect reaches
type ErrorType string

const (
	// ErrorTypeDriverInit: the browser session could not be started. Fatal to one worker.
	ErrorTypeDriverInit ErrorType = "driver_init"
	// ErrorTypeExtractionTimeout: the page marker never appeared. Skip the cycle.
	ErrorTypeExtractionTimeout ErrorType = "extraction_timeout"
	// ErrorTypeStructuralParseMiss: an optional region was absent and a default was used.
	ErrorTypeStructuralParseMiss ErrorType = "structural_parse_miss"
	// ErrorTypeNavigationExhausted: neither navigation method advanced the feed.
	ErrorTypeNavigationExhausted ErrorType = "navigation_exhausted"
	// ErrorTypeSinkWrite: a worker's batch could not be persisted.
	ErrorTypeSinkWrite ErrorType = "sink_write"
	// ErrorTypeConfig: process-level misconfiguration. The only type that aborts a run.
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a typed pipeline error
type Error struct {
	Type    ErrorType
	Message string
	Worker  string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Worker != "" {
		msg = fmt.Sprintf("%s error [%s]: %s", e.Type, e.Worker, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same type, so errors.Is(err, &Error{Type: T}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Type == e.Type
}

func newError(t ErrorType, worker string, cause error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Worker: worker, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// DriverInit reports a failed session acquisition
func DriverInit(worker string, cause error) *Error {
	return newError(ErrorTypeDriverInit, worker, cause, "failed to start browser session")
}

// ExtractionTimeout reports that selector did not appear in time
func ExtractionTimeout(worker, selector string, cause error) *Error {
	return newError(ErrorTypeExtractionTimeout, worker, cause, "timed out waiting for %s", selector)
}

// StructuralParseMiss reports a missing optional field
func StructuralParseMiss(worker, field string) *Error {
	return newError(ErrorTypeStructuralParseMiss, worker, nil, "field %s not found, default used", field)
}

// NavigationExhausted reports that the session cannot advance any further
func NavigationExhausted(worker string, cause error) *Error {
	return newError(ErrorTypeNavigationExhausted, worker, cause, "no navigation method advanced the feed")
}

// SinkWrite reports a batch that could not be persisted
func SinkWrite(worker string, items int, cause error) *Error {
	return newError(ErrorTypeSinkWrite, worker, cause, "failed to write %d items", items)
}

// Config reports an invalid configuration
func Config(cause error) *Error {
	return newError(ErrorTypeConfig, "", cause, "invalid configuration")
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRecoverable reports whether the worker loop should simply continue
func IsRecoverable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeExtractionTimeout, ErrorTypeStructuralParseMiss:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether err ends the worker it happened in
func IsTerminal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeDriverInit, ErrorTypeNavigationExhausted, ErrorTypeSinkWrite:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type is worth another attempt
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeDriverInit, ErrorTypeSinkWrite, ErrorTypeExtractionTimeout:
		return true
	default:
		return false
	}
}
