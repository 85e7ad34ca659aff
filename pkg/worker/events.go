package worker

import (
	"time"

	"shortscraper/pkg/models"
)

// EventKind tags a progress event
type EventKind int

const (
	// EventState: the worker changed state
	EventState EventKind = iota
	// EventItem: an item was collected
	EventItem
	// EventError: an iteration was charged to the error budget
	EventError
	// EventDone: the worker finished; Summary is set
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventItem:
		return "item"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a progress notification for dashboards
type Event struct {
	WorkerID  string
	Kind      EventKind
	State     models.SessionState
	Reason    models.StopReason
	ItemID    string
	Collected int
	Quota     int
	Errors    int
	Message   string
	Summary   *models.WorkerSummary
	At        time.Time
}
