package work

import (
	"sync"
	"time"
)

// ProgressReporter provides progress reporting for long-running work.
// It emits events that can be consumed by the UI to show real-time progress.
type ProgressReporter struct {
	eventEmitter EventEmitter
	workID       string
	workType     string

	// Throttling to avoid spam
	lastReport time.Time
	mu         sync.Mutex
}

// EventEmitter defines the interface for emitting events
type EventEmitter interface {
	Emit(event string, data any)
}

// ProgressEvent is emitted during work execution
type ProgressEvent struct {
	WorkID   string `json:"work_id"`
	WorkType string `json:"work_type"`
	Current  int    `json:"current,omitempty"`
	Total    int    `json:"total,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Event names for work lifecycle
const (
	EventJobStarted   = "JobStarted"
	EventJobProgress  = "JobProgress"
	EventJobCompleted = "JobCompleted"
	EventJobFailed    = "JobFailed"
)

// Throttle interval for progress events (avoid spam)
const progressThrottleInterval = 100 * time.Millisecond

// NewProgressReporter creates a new progress reporter for a unit of work
func NewProgressReporter(emitter EventEmitter, workID, workType string) *ProgressReporter {
	return &ProgressReporter{
		eventEmitter: emitter,
		workID:       workID,
		workType:     workType,
	}
}

// Report reports numeric progress (current/total) with a message.
// Progress events are throttled, except the final completion which always
// goes out so consumers see 100%.
func (r *ProgressReporter) Report(current, total int, message string) {
	if r == nil || r.eventEmitter == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current < total && time.Since(r.lastReport) < progressThrottleInterval {
		return
	}
	r.lastReport = time.Now()

	r.eventEmitter.Emit(EventJobProgress, ProgressEvent{
		WorkID:   r.workID,
		WorkType: r.workType,
		Current:  current,
		Total:    total,
		Message:  message,
	})
}
