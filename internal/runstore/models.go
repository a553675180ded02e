package runstore

import "time"

// Status represents the lifecycle state of a run.
type Status string

const (
	// StatusRunning marks a run whose workflow is still executing.
	StatusRunning Status = "running"
	// StatusCompleted marks a run that finished without error.
	StatusCompleted Status = "completed"
	// StatusFailed marks a run aborted by a processing or transfer failure.
	StatusFailed Status = "failed"
	// StatusRejected marks a run refused because its input was unusable.
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// Run is one workflow invocation recorded in the journal.
type Run struct {
	ID           string
	ItemID       string
	Title        string
	Workflow     string
	Status       Status
	Stage        string
	Message      string
	ErrorMessage string
	StartedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns the elapsed run time; running runs measure up to now.
func (r *Run) Duration() time.Duration {
	if r == nil || r.StartedAt.IsZero() {
		return 0
	}
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return end.Sub(r.StartedAt)
}

// Artifact is the latest persisted library file for an item and mode.
type Artifact struct {
	ItemID  string
	Mode    string
	Format  string
	Path    string
	Size    int64
	RunID   string
	SavedAt time.Time
}

// ListOptions filters ListRuns.
type ListOptions struct {
	Limit  int
	ItemID string
	Status []Status
}
