package stageexec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"karaoke/internal/jobqueue"
	"karaoke/internal/media"
	"karaoke/internal/runstore"
	"karaoke/internal/services"
	"karaoke/internal/stageexec"
	"karaoke/internal/testsupport"
)

type notifierStub struct {
	completed []string
	failed    []error
}

func (n *notifierStub) NotifyRunCompleted(_ context.Context, workflow, item string, _ time.Duration) error {
	n.completed = append(n.completed, workflow+":"+item)
	return nil
}

func (n *notifierStub) NotifyRunFailed(_ context.Context, _ string, _ string, err error) error {
	n.failed = append(n.failed, err)
	return nil
}

func (n *notifierStub) TestNotification(context.Context) error { return nil }

func TestRunRecordsCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &notifierStub{}
	var forwarded []string
	var runID string

	err := stageexec.Run(context.Background(), stageexec.Options{
		Store:    store,
		Notifier: notifier,
		Workflow: "generate",
		Item:     media.Item{ID: "abc123", Title: "Song"},
		Status:   func(label string) { forwarded = append(forwarded, label) },
		Exec: func(ctx context.Context, status jobqueue.StatusFunc) error {
			runID, _ = services.RunIDFromContext(ctx)
			status("Initializing")
			status("Separating audio 40%")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(forwarded) != 2 {
		t.Fatalf("expected labels forwarded to the caller, got %v", forwarded)
	}

	run, err := store.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	if run.Message != "Separating audio 40%" {
		t.Fatalf("expected last label as message, got %q", run.Message)
	}
	if len(notifier.completed) != 1 || notifier.completed[0] != "generate:Song" {
		t.Fatalf("unexpected completion notices %v", notifier.completed)
	}
}

func TestRunRecordsFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status runstore.Status
	}{
		{"input", services.Wrap(services.ErrInput, "realign", "load lyrics", "Lyrics is empty", nil), runstore.StatusRejected},
		{"processing", services.Wrap(services.ErrProcessing, "split", "wait", "Processing failed", nil), runstore.StatusFailed},
		{"transfer", services.Wrap(services.ErrTransfer, "fetcher", "fetch", "Download failed", nil), runstore.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := testsupport.MustOpenStore(t, cfg)
			notifier := &notifierStub{}
			var runID string

			err := stageexec.Run(context.Background(), stageexec.Options{
				Store:    store,
				Notifier: notifier,
				Workflow: "realign",
				Item:     media.Item{ID: "abc123"},
				Exec: func(ctx context.Context, _ jobqueue.StatusFunc) error {
					runID, _ = services.RunIDFromContext(ctx)
					return tt.err
				},
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected workflow error returned unchanged, got %v", err)
			}
			run, getErr := store.GetRun(context.Background(), runID)
			if getErr != nil {
				t.Fatalf("GetRun: %v", getErr)
			}
			if run.Status != tt.status {
				t.Fatalf("status = %s, want %s", run.Status, tt.status)
			}
			if run.ErrorMessage != services.Message(tt.err) {
				t.Fatalf("error message = %q", run.ErrorMessage)
			}
			if run.FinishedAt.IsZero() {
				t.Fatal("expected finished_at to be set")
			}
			if len(notifier.failed) != 1 {
				t.Fatalf("expected one failure notice, got %d", len(notifier.failed))
			}
		})
	}
}

func TestRunRequiresExecAndItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := stageexec.Run(context.Background(), stageexec.Options{Store: store, Item: media.Item{ID: "x"}}); err == nil {
		t.Fatal("expected error without exec")
	}
	err := stageexec.Run(context.Background(), stageexec.Options{
		Store: store,
		Exec:  func(context.Context, jobqueue.StatusFunc) error { return nil },
	})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for empty item, got %v", err)
	}
}
