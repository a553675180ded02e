package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"karaoke/internal/jobqueue"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/notifications"
	"karaoke/internal/runstore"
	"karaoke/internal/services"
)

// Exec runs the workflow body. ctx carries the run ID.
type Exec func(ctx context.Context, status jobqueue.StatusFunc) error

// Journal is the subset of the run store used here.
type Journal interface {
	Begin(ctx context.Context, itemID, title, workflow string) (*runstore.Run, error)
	UpdateStage(ctx context.Context, runID, stage, message string) error
	UpdateMessage(ctx context.Context, runID, message string) error
	Complete(ctx context.Context, runID string) error
	Fail(ctx context.Context, runID string, status runstore.Status, errorMessage string) error
}

// Options controls run execution.
type Options struct {
	Logger   *slog.Logger
	Store    Journal
	Notifier notifications.Service
	Workflow string
	Item     media.Item
	Status   jobqueue.StatusFunc
	Exec     Exec
}

// Run records a journal entry around opts.Exec, forwards status labels to the
// journal and to opts.Status, and publishes a completion or failure notice.
// The workflow error is returned unchanged.
func Run(ctx context.Context, opts Options) error {
	if opts.Exec == nil {
		return fmt.Errorf("workflow body unavailable: %s", opts.Workflow)
	}
	if opts.Store == nil {
		return errors.New("run store is required")
	}
	if err := opts.Item.Validate(); err != nil {
		return services.Wrap(services.ErrInput, opts.Workflow, "begin run", "Missing item id", err)
	}

	run, err := opts.Store.Begin(ctx, opts.Item.ID, opts.Item.Title, opts.Workflow)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	runCtx := services.WithRunID(ctx, run.ID)
	runCtx = services.WithItemID(runCtx, opts.Item.ID)
	runCtx = services.WithWorkflow(runCtx, opts.Workflow)
	logger := logging.WithContext(runCtx, opts.Logger)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("title", strings.TrimSpace(opts.Item.Title)),
	)

	start := time.Now()
	status := func(label string) {
		if err := opts.Store.UpdateMessage(runCtx, run.ID, label); err != nil {
			logger.Debug("run message not recorded", logging.Error(err))
		}
		if opts.Status != nil {
			opts.Status(label)
		}
	}

	execErr := opts.Exec(runCtx, status)
	if execErr != nil {
		return handleFailure(runCtx, logger, opts, run.ID, execErr)
	}

	if err := opts.Store.Complete(runCtx, run.ID); err != nil {
		logger.Error("failed to persist run completion", logging.Error(err))
	}
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("run_duration", time.Since(start)),
	)
	if opts.Notifier != nil {
		if err := opts.Notifier.NotifyRunCompleted(runCtx, opts.Workflow, opts.Item.Label(), time.Since(start)); err != nil {
			logger.Debug("run completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, runID string, runErr error) error {
	message := services.Message(runErr)
	status := services.FailureStatus(runErr)

	var svcErr *services.Error
	if errors.As(runErr, &svcErr) && svcErr.Stage != "" {
		if err := opts.Store.UpdateStage(ctx, runID, svcErr.Stage, message); err != nil {
			logger.Debug("failed stage not recorded", logging.Error(err))
		}
	}
	logger.Error("run failed",
		logging.String(logging.FieldEventType, "run_failure"),
		logging.String("resolved_status", string(status)),
		logging.String("error_message", message),
		logging.Error(runErr),
	)
	if err := opts.Store.Fail(ctx, runID, status, message); err != nil {
		logger.Error("failed to persist run failure", logging.Error(err))
	}

	if opts.Notifier != nil {
		if err := opts.Notifier.NotifyRunFailed(ctx, opts.Workflow, opts.Item.Label(), runErr); err != nil {
			logger.Debug("run failure notification failed", logging.Error(err))
		}
	}
	return runErr
}
