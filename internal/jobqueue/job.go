package jobqueue

import (
	"context"
	"fmt"
	"math"
)

// State is the lifecycle state reported by the backend.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the job will not change state again.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Options carries the per-job knobs every alignment request includes.
type Options struct {
	Mode string `json:"mode,omitempty"`
	Lang string `json:"lang,omitempty"`
}

// Params is the job payload. Which URLs are set depends on the queue.
type Params struct {
	AudioURL      string   `json:"audioUrl"`
	TranscriptURL string   `json:"transcriptUrl,omitempty"`
	AlignmentsURL string   `json:"alignmentsUrl,omitempty"`
	Options       *Options `json:"options,omitempty"`
}

// Result holds the artifact URLs a finished job produced. Any of them may be
// empty; callers validate what they need.
type Result struct {
	AlignmentsURL  string `json:"alignmentsUrl,omitempty"`
	InstrumentsURL string `json:"instrumentsUrl,omitempty"`
	VocalsURL      string `json:"vocalsUrl,omitempty"`
}

// Job is the backend's view of one submitted job.
type Job struct {
	ID       string  `json:"id"`
	Queue    string  `json:"queue,omitempty"`
	State    State   `json:"state"`
	Progress float64 `json:"progress,omitempty"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// StatusFunc receives human-readable progress labels.
type StatusFunc func(string)

// Client is the contract the orchestrator relies on.
type Client interface {
	Enqueue(ctx context.Context, queue string, params Params) (string, error)
	Wait(ctx context.Context, queue, jobID string, status StatusFunc) (*Job, error)
}

// Labels maps queue names to the label prefix used in progress updates.
type Labels map[string]string

const defaultLabel = "Processing"

// For returns the label for queue, falling back to a generic one.
func (l Labels) For(queue string) string {
	if label, ok := l[queue]; ok && label != "" {
		return label
	}
	return defaultLabel
}

// ProgressLabel renders "<label> <percent>%" with percent clamped to 0..100.
func ProgressLabel(label string, percent float64) string {
	if math.IsNaN(percent) {
		percent = 0
	}
	percent = math.Max(0, math.Min(100, percent))
	return fmt.Sprintf("%s %d%%", label, int(math.Round(percent)))
}
