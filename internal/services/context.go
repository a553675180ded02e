package services

import "context"

type contextKey string

const (
	itemIDKey    contextKey = "item_id"
	stageKey     contextKey = "stage"
	workflowKey  contextKey = "workflow"
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithItemID tags ctx with the karaoke item being processed.
func WithItemID(ctx context.Context, id string) context.Context {
	return withValue(ctx, itemIDKey, id)
}

// ItemIDFromContext returns the item id set by WithItemID.
func ItemIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, itemIDKey) }

// WithStage tags ctx with the current stage (split, align, ...).
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage set by WithStage.
func StageFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, stageKey) }

// WithWorkflow tags ctx with the entry workflow (generate, realign, alignline).
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withValue(ctx, workflowKey, workflow)
}

// WorkflowFromContext returns the workflow set by WithWorkflow.
func WorkflowFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, workflowKey) }

// WithRequestID tags ctx with a correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, requestIDKey) }

// WithRunID tags ctx with the run journal id.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run id set by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, runIDKey) }
