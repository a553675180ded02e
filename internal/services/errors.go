package services

import (
	"errors"
	"fmt"
	"strings"

	"karaoke/internal/runstore"
)

var (
	// ErrInput marks a missing precondition (no lyrics, no vocals, undetectable language).
	ErrInput = errors.New("input error")
	// ErrProcessing marks a remote job that finished without a usable result.
	ErrProcessing = errors.New("processing error")
	// ErrTransfer marks a failure collecting a payload from transient storage.
	ErrTransfer = errors.New("transfer error")

	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Error carries the short human-readable description a caller is expected to
// show verbatim, alongside the classification marker and optional cause.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// Message returns the user-facing description of err. Errors built by Wrap
// yield their message; anything else falls back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return strings.TrimSpace(err.Error())
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// FailureStatus maps a workflow error to the run status the journal should
// persist after the workflow stops.
func FailureStatus(err error) runstore.Status {
	switch {
	case errors.Is(err, ErrInput), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return runstore.StatusRejected
	default:
		return runstore.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
