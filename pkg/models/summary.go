package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionState is a worker's position in its lifecycle
type SessionState int

const (
	StateStarting SessionState = iota
	StateLooping
	StateDraining
	StateTerminated
	StateErrorTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateLooping:
		return "Looping"
	case StateDraining:
		return "Draining"
	case StateTerminated:
		return "Terminated"
	case StateErrorTerminated:
		return "ErrorTerminated"
	default:
		return "Unknown"
	}
}

// Final reports whether s is an absorbing state
func (s SessionState) Final() bool {
	return s == StateTerminated || s == StateErrorTerminated
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SessionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st := StateStarting; st <= StateErrorTerminated; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", name)
}

// StopReason explains why a worker left its loop
type StopReason string

const (
	ReasonNone             StopReason = ""
	ReasonQuotaReached     StopReason = "quota reached"
	ReasonNavigationFailed StopReason = "navigation exhausted"
	ReasonErrorBudget      StopReason = "error budget exhausted"
	ReasonSkipBudget       StopReason = "skip budget exhausted"
	ReasonCancelled        StopReason = "cancelled"
	ReasonDriverInit       StopReason = "driver init failed"
	ReasonStartFailed      StopReason = "feed load failed"
	ReasonSinkWriteFailed  StopReason = "sink write failed"
	ReasonPanic            StopReason = "unexpected panic"
)

// WorkerSummary is the per-worker outcome printed and saved at the end of a run
type WorkerSummary struct {
	WorkerID   string       `json:"worker_id"`
	Quota      int          `json:"quota"`
	Collected  int          `json:"collected"`
	Written    int          `json:"written"`
	Duplicates int          `json:"duplicates"`
	Iterations int          `json:"iterations"`
	Errors     int          `json:"errors"`
	FinalState SessionState `json:"final_state"`
	Reason     StopReason   `json:"reason"`
	Err        string       `json:"error,omitempty"`
	SpoolPath  string       `json:"spool_path,omitempty"`
	Started    time.Time    `json:"started"`
	Finished   time.Time    `json:"finished"`
}

// Duration is the wall time the worker ran
func (w WorkerSummary) Duration() time.Duration {
	if w.Finished.IsZero() {
		return 0
	}
	return w.Finished.Sub(w.Started)
}

// SinkFailed reports whether the worker had output that could not be written
func (w WorkerSummary) SinkFailed() bool {
	return w.Reason == ReasonSinkWriteFailed
}
