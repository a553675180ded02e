package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"karaoke/internal/config"
	"karaoke/internal/fetcher"
	"karaoke/internal/jobqueue"
	"karaoke/internal/library"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/transfer"
)

// Workflow names used for logging and the run journal.
const (
	WorkflowGenerate  = "generate"
	WorkflowAlignLine = "alignline"
	WorkflowRealign   = "realign"
)

// Status labels announced to the caller's sink.
const (
	StatusInitializing     = "Initializing"
	StatusSearchingLyrics  = "Searching lyrics"
	StatusDownloadingAudio = "Downloading audio"
	StatusUploadingFiles   = "Uploading files"
	StatusDownloadingFiles = "Downloading files"
)

// StatusFunc receives human-readable phase labels. It never affects control
// flow.
type StatusFunc = jobqueue.StatusFunc

// Library supplies workflow inputs and persists artifacts.
type Library interface {
	Init(ctx context.Context, item media.Item) error
	GetLyrics(ctx context.Context, item media.Item, titleHint string) (string, error)
	GetLanguage(ctx context.Context, item media.Item, text string, force bool) (string, error)
	GetAudio(ctx context.Context, item media.Item, mode media.Mode) ([]byte, error)
	GetVideo(ctx context.Context, item media.Item, mode media.Mode) ([]byte, error)
	GetInfo(ctx context.Context, item media.Item) (*library.Info, error)
	GetAlignments(ctx context.Context, item media.Item, mode media.Mode) ([]json.RawMessage, error)
	SaveFile(ctx context.Context, item media.Item, mode media.Mode, format media.Format, payload []byte) error
}

// Transfer stages payloads for the backend and performs one-shot fetches.
type Transfer interface {
	Upload(ctx context.Context, payload []byte) (string, error)
	Fetch(ctx context.Context, url string, encoding transfer.Encoding) ([]byte, error)
}

// ResultFetcher collects job results with retry.
type ResultFetcher interface {
	Fetch(ctx context.Context, url string, encoding transfer.Encoding) ([]byte, error)
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Library  Library
	Transfer Transfer
	Queue    jobqueue.Client
	Fetcher  ResultFetcher
	Queues   config.Queues
	Logger   *slog.Logger
}

// Orchestrator runs the entry workflows for one item at a time per call. It
// holds no per-run state, so concurrent calls for different items are safe.
type Orchestrator struct {
	library  Library
	transfer Transfer
	queue    jobqueue.Client
	fetcher  ResultFetcher
	queues   config.Queues
	logger   *slog.Logger
}

// New validates deps and returns an Orchestrator. When no fetcher is given,
// results are fetched through the transfer client with the default policy.
func New(deps Dependencies) (*Orchestrator, error) {
	if deps.Library == nil {
		return nil, errors.New("workflow: library is required")
	}
	if deps.Transfer == nil {
		return nil, errors.New("workflow: transfer client is required")
	}
	if deps.Queue == nil {
		return nil, errors.New("workflow: queue client is required")
	}
	queues := deps.Queues
	defaults := config.Default().Queues
	if queues.Split == "" {
		queues.Split = defaults.Split
	}
	if queues.Align == "" {
		queues.Align = defaults.Align
	}
	if queues.AlignEN == "" {
		queues.AlignEN = defaults.AlignEN
	}
	if queues.AlignLine == "" {
		queues.AlignLine = defaults.AlignLine
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	results := deps.Fetcher
	if results == nil {
		results = fetcher.New(deps.Transfer, fetcher.DefaultPolicy(), fetcher.WithLogger(logger))
	}
	return &Orchestrator{
		library:  deps.Library,
		transfer: deps.Transfer,
		queue:    deps.Queue,
		fetcher:  results,
		queues:   queues,
		logger:   logging.NewComponentLogger(logger, "workflow"),
	}, nil
}

// step is one named unit of a workflow. Steps whose guard reports false are
// logged as skipped and do not run.
type step struct {
	name  string
	label string
	when  func() bool
	run   func(ctx context.Context) error
}

// runSteps executes steps in order and stops at the first error.
func (o *Orchestrator) runSteps(ctx context.Context, status StatusFunc, steps []step) error {
	for _, st := range steps {
		stepCtx := services.WithStage(ctx, st.name)
		logger := logging.WithContext(stepCtx, o.logger)
		if st.when != nil && !st.when() {
			logger.Debug("stage skipped",
				logging.String(logging.FieldEventType, "stage_skipped"),
				logging.String("reason", "precondition not met"),
			)
			continue
		}
		if st.label != "" {
			status(st.label)
		}
		start := time.Now()
		logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
		if err := st.run(stepCtx); err != nil {
			logger.Error("stage failed",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.String("error_message", services.Message(err)),
				logging.Error(err),
			)
			return err
		}
		logger.Debug("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(start)),
		)
	}
	return nil
}

// begin validates item and stamps ctx for a workflow run.
func (o *Orchestrator) begin(ctx context.Context, workflow string, item media.Item, status StatusFunc) (context.Context, StatusFunc, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := item.Validate(); err != nil {
		return ctx, nil, services.Wrap(services.ErrInput, workflow, "validate item", "Missing item id", err)
	}
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithWorkflow(ctx, workflow)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logging.WithContext(ctx, o.logger).Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.String("title", item.Title),
	)
	return ctx, serializeStatus(status), nil
}

func (o *Orchestrator) finish(ctx context.Context, start time.Time, err error) error {
	logger := logging.WithContext(ctx, o.logger)
	if err != nil {
		logger.Error("workflow failed",
			logging.String(logging.FieldEventType, "workflow_failure"),
			logging.String("error_message", services.Message(err)),
			logging.Duration("duration", time.Since(start)),
			logging.Error(err),
		)
		return err
	}
	logger.Info("workflow completed",
		logging.String(logging.FieldEventType, "workflow_complete"),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

// serializeStatus makes the sink safe to call from concurrent stages.
func serializeStatus(status StatusFunc) StatusFunc {
	if status == nil {
		return func(string) {}
	}
	var mu sync.Mutex
	return func(label string) {
		mu.Lock()
		defer mu.Unlock()
		status(label)
	}
}

// waitJob enqueues params on queue and blocks until the job is terminal.
func (o *Orchestrator) waitJob(ctx context.Context, queue string, params jobqueue.Params, status StatusFunc) (*jobqueue.Job, error) {
	jobID, err := o.queue.Enqueue(ctx, queue, params)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, o.logger).With(
		logging.Queue(queue),
		logging.JobID(jobID),
	)
	logger.Info("job enqueued", logging.String(logging.FieldEventType, "job_enqueued"))
	job, err := o.queue.Wait(ctx, queue, jobID, status)
	if err != nil {
		return nil, err
	}
	if job != nil {
		logger.Info("job finished",
			logging.String("state", string(job.State)),
			logging.String("job_error", job.Error),
			logging.String(logging.FieldEventType, "job_finished"),
		)
	}
	return job, nil
}

func resultOf(job *jobqueue.Job) jobqueue.Result {
	if job == nil || job.Result == nil {
		return jobqueue.Result{}
	}
	return *job.Result
}
