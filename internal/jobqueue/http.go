package jobqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"karaoke/internal/config"
	"karaoke/internal/logging"
	"karaoke/internal/services"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultHTTPTimeout     = 60 * time.Second
	defaultFailureBudget   = 5
	maxErrorBody           = 4096
	progressBucketPercents = 1
)

// HTTPConfig describes the HTTP queue driver.
type HTTPConfig struct {
	BaseURL       string
	Token         string
	PollInterval  time.Duration
	WaitTimeout   time.Duration
	FailureBudget int
	Labels        Labels
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// HTTPClient polls a REST job API.
type HTTPClient struct {
	baseURL       *url.URL
	token         string
	pollInterval  time.Duration
	waitTimeout   time.Duration
	failureBudget int
	labels        Labels
	http          *http.Client
	logger        *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient validates cfg and returns a polling client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("jobqueue: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	budget := cfg.FailureBudget
	if budget <= 0 {
		budget = defaultFailureBudget
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPClient{
		baseURL:       baseURL,
		token:         strings.TrimSpace(cfg.Token),
		pollInterval:  poll,
		waitTimeout:   cfg.WaitTimeout,
		failureBudget: budget,
		labels:        cfg.Labels,
		http:          client,
		logger:        logging.NewComponentLogger(logger, "jobqueue"),
	}, nil
}

// NewHTTPClientFromConfig builds the HTTP driver from the backend section.
func NewHTTPClientFromConfig(cfg *config.Config, logger *slog.Logger) (*HTTPClient, error) {
	if cfg == nil {
		return nil, errors.New("jobqueue: config is nil")
	}
	return NewHTTPClient(HTTPConfig{
		BaseURL:      cfg.Backend.QueueURL,
		Token:        cfg.Backend.APIToken,
		PollInterval: cfg.PollInterval(),
		WaitTimeout:  cfg.WaitTimeout(),
		Labels:       LabelsFromConfig(cfg),
		HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout()},
		Logger:       logger,
	})
}

// LabelsFromConfig names progress updates after the configured queues.
func LabelsFromConfig(cfg *config.Config) Labels {
	return Labels{
		cfg.Queues.Split:     "Separating audio",
		cfg.Queues.Align:     "Syncing lyrics",
		cfg.Queues.AlignEN:   "Syncing lyrics",
		cfg.Queues.AlignLine: "Syncing words",
	}
}

type enqueueResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Enqueue submits params on queue and returns the job id.
func (c *HTTPClient) Enqueue(ctx context.Context, queue string, params Params) (string, error) {
	if strings.TrimSpace(queue) == "" {
		return "", services.Wrap(services.ErrConfiguration, "jobqueue", "enqueue", "Queue name missing", nil)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, "jobqueue", "enqueue", "Encode job failed", err)
	}
	endpoint := c.baseURL.JoinPath("queues", queue, "jobs")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, "jobqueue", "enqueue", "Submit job failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "jobqueue", "enqueue", "Submit job failed", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "enqueue", "Submit job failed"); err != nil {
		return "", err
	}

	var decoded enqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrProcessing, "jobqueue", "enqueue", "Submit job failed",
			fmt.Errorf("decode enqueue response: %w", err))
	}
	if decoded.Error != "" || strings.TrimSpace(decoded.ID) == "" {
		return "", services.Wrap(services.ErrProcessing, "jobqueue", "enqueue", "Submit job failed",
			fmt.Errorf("backend rejected job: %q", decoded.Error))
	}
	c.logger.Info("job enqueued",
		logging.Queue(queue),
		logging.JobID(decoded.ID),
		logging.String(logging.FieldEventType, "job_enqueued"),
	)
	return decoded.ID, nil
}

// Wait polls the job until it is terminal. Progress labels are forwarded to
// status only when they change.
func (c *HTTPClient) Wait(ctx context.Context, queue, jobID string, status StatusFunc) (*Job, error) {
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}
	forward := NewProgressForwarder(c.labels.For(queue), status)
	failures := 0
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.fetchJob(ctx, queue, jobID)
		switch {
		case err == nil:
			failures = 0
			forward.Observe(job)
			if job.State.IsTerminal() {
				if job.State == StateFailed {
					job.Result = nil
					c.logger.Warn("job failed",
						logging.Queue(queue),
						logging.JobID(jobID),
						logging.String("reason", job.Error),
						logging.String(logging.FieldEventType, "job_failed"),
						logging.String(logging.FieldErrorHint, "inspect the processing backend logs for this job"),
					)
				} else {
					c.logger.Info("job completed",
						logging.Queue(queue),
						logging.JobID(jobID),
						logging.String(logging.FieldEventType, "job_completed"),
					)
				}
				return job, nil
			}
		case ctx.Err() != nil:
			return nil, c.waitAborted(ctx, queue, jobID)
		case services.IsTransient(err):
			failures++
			if failures >= c.failureBudget {
				return nil, services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Lost contact with processing backend", err)
			}
			c.logger.Warn("job poll failed, retrying",
				logging.Queue(queue),
				logging.JobID(jobID),
				logging.Int("consecutive_failures", failures),
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_poll_retry"),
				logging.String(logging.FieldErrorHint, "check connectivity to the queue backend"),
			)
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, c.waitAborted(ctx, queue, jobID)
		case <-ticker.C:
		}
	}
}

func (c *HTTPClient) waitAborted(ctx context.Context, queue, jobID string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Job timed out",
			fmt.Errorf("job %s on %s: %w", jobID, queue, ctx.Err()))
	}
	return services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Job wait cancelled", ctx.Err())
}

func (c *HTTPClient) fetchJob(ctx context.Context, queue, jobID string) (*Job, error) {
	endpoint := c.baseURL.JoinPath("queues", queue, "jobs", jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Poll job failed", err)
	}
	c.applyHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "jobqueue", "wait", "Poll job failed", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "wait", "Poll job failed"); err != nil {
		return nil, err
	}
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, services.Wrap(services.ErrTransient, "jobqueue", "wait", "Poll job failed",
			fmt.Errorf("decode job: %w", err))
	}
	if job.ID == "" {
		job.ID = jobID
	}
	if job.Queue == "" {
		job.Queue = queue
	}
	return &job, nil
}

func (c *HTTPClient) applyHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response, operation, message string) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := fmt.Errorf("%s failed (%s): %s", operation, resp.Status, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return services.Wrap(services.ErrTransient, "jobqueue", operation, message, err)
	}
	return services.Wrap(services.ErrProcessing, "jobqueue", operation, message, err)
}

// ProgressForwarder turns job snapshots into status labels, forwarding a
// label only when it differs from the previous one.
type ProgressForwarder struct {
	label   string
	status  StatusFunc
	sampler *logging.ProgressSampler
	last    string
}

// NewProgressForwarder builds a forwarder that prefixes labels with label.
func NewProgressForwarder(label string, status StatusFunc) *ProgressForwarder {
	return &ProgressForwarder{
		label:   label,
		status:  status,
		sampler: logging.NewProgressSampler(progressBucketPercents),
	}
}

// Observe forwards the label for job when it changed.
func (p *ProgressForwarder) Observe(job *Job) {
	if p == nil || p.status == nil || job == nil || job.State.IsTerminal() {
		return
	}
	percent := -1.0
	if job.State == StateActive {
		percent = job.Progress
	}
	if !p.sampler.ShouldEmit(percent, string(job.State)) {
		return
	}
	var text string
	if job.State == StateActive {
		text = ProgressLabel(p.label, job.Progress)
	} else {
		text = p.label + " (queued)"
	}
	if text == p.last {
		return
	}
	p.last = text
	p.status(text)
}
