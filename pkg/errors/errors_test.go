package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	cause := stderrors.New("exec: chrome not found")
	err := DriverInit("acc1", cause)

	assert.Equal(t, "driver_init error [acc1]: failed to start browser session: exec: chrome not found", err.Error())
	assert.ErrorIs(t, err, cause)

	cfgErr := Config(stderrors.New("no workers"))
	assert.Equal(t, "config error: invalid configuration: no workers", cfgErr.Error())
}

func TestErrorsIsByType(t *testing.T) {
	wrapped := fmt.Errorf("worker loop: %w", SinkWrite("acc1", 3, context.DeadlineExceeded))

	assert.ErrorIs(t, wrapped, &Error{Type: ErrorTypeSinkWrite})
	assert.NotErrorIs(t, wrapped, &Error{Type: ErrorTypeDriverInit})
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		typ         ErrorType
		recoverable bool
		terminal    bool
	}{
		{"driver init", DriverInit("w", nil), ErrorTypeDriverInit, false, true},
		{"extraction timeout", ExtractionTimeout("w", "ytd-reel-video-renderer", nil), ErrorTypeExtractionTimeout, true, false},
		{"parse miss", StructuralParseMiss("w", "caption"), ErrorTypeStructuralParseMiss, true, false},
		{"navigation", NavigationExhausted("w", nil), ErrorTypeNavigationExhausted, false, true},
		{"sink", SinkWrite("w", 1, nil), ErrorTypeSinkWrite, false, true},
		{"plain", stderrors.New("boom"), ErrorTypeUnknown, false, false},
		{"nil", nil, ErrorTypeUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, TypeOf(tt.err))
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			assert.Equal(t, tt.terminal, IsTerminal(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeDriverInit))
	assert.True(t, IsRetryable(ErrorTypeSinkWrite))
	assert.False(t, IsRetryable(ErrorTypeNavigationExhausted))
	assert.False(t, IsRetryable(ErrorTypeConfig))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}
