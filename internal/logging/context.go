package logging

import (
	"context"
	"log/slog"

	"karaoke/internal/services"
)

// Structured field keys shared by every handler and by log filtering.
const (
	FieldComponent     = "component"
	FieldItemID        = "item_id"
	FieldStage         = "stage"
	FieldWorkflow      = "workflow"
	FieldCorrelationID = "correlation_id"
	FieldRunID         = "run_id"
	FieldQueue         = "queue"
	FieldJobID         = "job_id"
	FieldMode          = "mode"
	FieldLanguage      = "lang"

	// FieldEventType classifies a line for filtering (stage_start, fetch_retry, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
)

var contextFields = []struct {
	key    string
	lookup func(context.Context) (string, bool)
}{
	{FieldItemID, services.ItemIDFromContext},
	{FieldWorkflow, services.WorkflowFromContext},
	{FieldStage, services.StageFromContext},
	{FieldRunID, services.RunIDFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the item/workflow/stage/run attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, f := range contextFields {
		if v, ok := f.lookup(ctx); ok {
			fields = append(fields, slog.String(f.key, v))
		}
	}
	return fields
}

// WithContext binds the fields carried by ctx to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
