package stage

import (
	"context"
	"log/slog"

	"karaoke/internal/logging"
	"karaoke/internal/services"
)

// Kind tags how a stage ended.
type Kind uint8

const (
	// KindPersisted means the stage stored its artifact.
	KindPersisted Kind = iota + 1
	// KindSkipped means the stage had nothing to store. Not an error.
	KindSkipped
	// KindFailed means the stage stopped with an error.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindPersisted:
		return "persisted"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one stage.
type Outcome struct {
	Kind   Kind
	Stage  string
	Detail string
	Err    error
}

// Persisted reports a stored artifact; detail names it.
func Persisted(stage, detail string) Outcome {
	return Outcome{Kind: KindPersisted, Stage: stage, Detail: detail}
}

// Skipped reports a stage that ended without storing anything.
func Skipped(stage, reason string) Outcome {
	return Outcome{Kind: KindSkipped, Stage: stage, Detail: reason}
}

// Failed reports a stage error. A nil err is treated as persisted.
func Failed(stage string, err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindPersisted, Stage: stage}
	}
	return Outcome{Kind: KindFailed, Stage: stage, Err: err}
}

// Error returns the stage error, nil unless the outcome failed.
func (o Outcome) Error() error {
	if o.Kind != KindFailed {
		return nil
	}
	return o.Err
}

// Log writes the outcome as a stage lifecycle event.
func (o Outcome) Log(ctx context.Context, logger *slog.Logger) {
	logger = logging.WithContext(services.WithStage(ctx, o.Stage), logger)
	switch o.Kind {
	case KindPersisted:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("detail", o.Detail),
		)
	case KindSkipped:
		logger.Info("stage skipped",
			logging.String(logging.FieldEventType, "stage_skipped"),
			logging.String("reason", o.Detail),
		)
	case KindFailed:
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("error_message", services.Message(o.Err)),
			logging.Error(o.Err),
		)
	}
}
