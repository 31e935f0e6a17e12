package dispatch

import "time"

// Status is the terminal state of one run.
type Status int

const (
	// StatusCompleted: the feed was trusted, new items (possibly zero
	// recipients) were processed, progress was committed.
	StatusCompleted Status = iota
	// StatusSkipped: expected no-op — offline, first-run baseline, or no
	// new publication. Not an error.
	StatusSkipped
	// StatusFailed: the run's data could not be trusted or understood.
	// Nothing was committed beyond what earlier runs already wrote.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Skip/fail reasons. Reasons are stable strings so the run event can be
// matched by subscribers.
const (
	ReasonOffline    = "offline"
	ReasonBaseline   = "first_run_baseline"
	ReasonNothingNew = "nothing_new"
)

// Outcome summarizes one dispatch run. The scheduler always sees a normal
// completion; this is the only record of what happened.
type Outcome struct {
	Status Status
	Reason string

	NewItems   int
	Recipients int
	Notified   int
	Failed     int

	Took time.Duration
}
