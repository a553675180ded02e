// Package rabbitmq implements the jobqueue.Client contract over AMQP 0-9-1.
//
// Jobs are published to durable named queues with a fresh correlation id and
// the client's exclusive reply queue in ReplyTo. Workers answer on the reply
// queue with progress, result, or failed messages carrying the same
// correlation id; Wait consumes them until a terminal message arrives.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"karaoke/internal/config"
	"karaoke/internal/jobqueue"
	"karaoke/internal/logging"
	"karaoke/internal/services"
)

// Message types a worker sends on the reply queue.
const (
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageFailed   = "failed"
)

const (
	replyBuffer     = 16
	terminalHandoff = 5 * time.Second
)

// Request is the body published on a job queue.
type Request struct {
	ID     string          `json:"id"`
	Queue  string          `json:"queue"`
	Params jobqueue.Params `json:"params"`
}

// Reply is the body a worker publishes on the reply queue.
type Reply struct {
	Type     string           `json:"type"`
	Progress float64          `json:"progress,omitempty"`
	Result   *jobqueue.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Config describes the AMQP driver.
type Config struct {
	URL         string
	WaitTimeout time.Duration
	Labels      jobqueue.Labels
	Logger      *slog.Logger
}

// Client publishes jobs and collects replies over one connection.
type Client struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	replyQueue  string
	waitTimeout time.Duration
	labels      jobqueue.Labels
	logger      *slog.Logger

	mu       sync.Mutex
	waiters  map[string]chan Reply
	declared map[string]struct{}
	closed   bool
	done     chan struct{}
}

var _ jobqueue.Client = (*Client)(nil)

// Dial connects to the broker and starts consuming the reply queue.
func Dial(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobqueue", "dial", "Can't connect to message broker", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	reply, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	deliveries, err := ch.Consume(reply.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	client := newClient(cfg)
	client.conn = conn
	client.ch = ch
	client.replyQueue = reply.Name
	go client.dispatch(deliveries)
	return client, nil
}

// DialFromConfig connects using the backend section of cfg.
func DialFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("rabbitmq: config is nil")
	}
	return Dial(Config{
		URL:         cfg.Backend.AMQPURL,
		WaitTimeout: cfg.WaitTimeout(),
		Labels:      jobqueue.LabelsFromConfig(cfg),
		Logger:      logger,
	})
}

func newClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		waitTimeout: cfg.WaitTimeout,
		labels:      cfg.Labels,
		logger:      logging.NewComponentLogger(logger, "rabbitmq"),
		waiters:     make(map[string]chan Reply),
		declared:    make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// Enqueue publishes params on queue and returns the correlation id used as job id.
func (c *Client) Enqueue(ctx context.Context, queue string, params jobqueue.Params) (string, error) {
	id := uuid.NewString()
	body, err := json.Marshal(Request{ID: id, Queue: queue, Params: params})
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, "jobqueue", "enqueue", "Encode job failed", err)
	}
	if err := c.declare(queue); err != nil {
		return "", services.Wrap(services.ErrProcessing, "jobqueue", "enqueue", "Submit job failed", err)
	}

	c.register(id)
	err = c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: id,
		ReplyTo:       c.replyQueue,
		MessageId:     id,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		c.unregister(id)
		return "", services.Wrap(services.ErrTransient, "jobqueue", "enqueue", "Submit job failed", err)
	}
	c.logger.Info("job published",
		logging.Queue(queue),
		logging.JobID(id),
		logging.String(logging.FieldEventType, "job_enqueued"),
	)
	return id, nil
}

// Wait consumes replies for jobID until a result or failure arrives.
func (c *Client) Wait(ctx context.Context, queue, jobID string, status jobqueue.StatusFunc) (*jobqueue.Job, error) {
	replies, ok := c.waiter(jobID)
	if !ok {
		return nil, services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Unknown job",
			fmt.Errorf("job %s was not published by this client", jobID))
	}
	defer c.unregister(jobID)

	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}
	forward := jobqueue.NewProgressForwarder(c.labels.For(queue), status)

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Job timed out", ctx.Err())
			}
			return nil, services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Job wait cancelled", ctx.Err())
		case <-c.done:
			return nil, services.Wrap(services.ErrProcessing, "jobqueue", "wait", "Lost contact with processing backend",
				errors.New("reply consumer stopped"))
		case reply := <-replies:
			job, terminal := applyReply(jobID, queue, reply)
			if !terminal {
				forward.Observe(job)
				continue
			}
			if job.State == jobqueue.StateFailed {
				c.logger.Warn("job failed",
					logging.Queue(queue),
					logging.JobID(jobID),
					logging.String("reason", job.Error),
					logging.String(logging.FieldEventType, "job_failed"),
				)
			}
			return job, nil
		}
	}
}

// applyReply converts a reply into a job snapshot and reports whether it is terminal.
func applyReply(jobID, queue string, reply Reply) (*jobqueue.Job, bool) {
	job := &jobqueue.Job{ID: jobID, Queue: queue}
	switch reply.Type {
	case MessageResult:
		job.State = jobqueue.StateCompleted
		job.Progress = 100
		job.Result = reply.Result
		return job, true
	case MessageFailed:
		job.State = jobqueue.StateFailed
		job.Error = reply.Error
		return job, true
	default:
		job.State = jobqueue.StateActive
		job.Progress = reply.Progress
		return job, false
	}
}

func (c *Client) dispatch(deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	for delivery := range deliveries {
		c.route(delivery)
	}
}

func (c *Client) route(delivery amqp.Delivery) {
	var reply Reply
	if err := json.Unmarshal(delivery.Body, &reply); err != nil {
		c.logger.Warn("discarding malformed reply",
			logging.String(logging.FieldCorrelationID, delivery.CorrelationId),
			logging.Error(err),
			logging.String(logging.FieldEventType, "reply_malformed"),
		)
		return
	}
	replies, ok := c.waiter(delivery.CorrelationId)
	if !ok {
		c.logger.Debug("discarding reply for unknown job",
			logging.String(logging.FieldCorrelationID, delivery.CorrelationId),
		)
		return
	}
	if reply.Type == MessageProgress {
		select {
		case replies <- reply:
		default:
		}
		return
	}
	select {
	case replies <- reply:
	case <-time.After(terminalHandoff):
		c.logger.Warn("dropping terminal reply, no waiter",
			logging.String(logging.FieldCorrelationID, delivery.CorrelationId),
			logging.String(logging.FieldEventType, "reply_dropped"),
		)
	}
}

func (c *Client) declare(queue string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.declared[queue]; ok {
		return nil
	}
	if _, err := c.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	c.declared[queue] = struct{}{}
	return nil
}

func (c *Client) register(id string) {
	c.mu.Lock()
	c.waiters[id] = make(chan Reply, replyBuffer)
	c.mu.Unlock()
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}

func (c *Client) waiter(id string) (chan Reply, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.waiters[id]
	return ch, ok
}

// Close shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if c.ch != nil {
		errs = append(errs, c.ch.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

// Probe opens and closes a connection to the broker at url.
func Probe(url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	return conn.Close()
}
