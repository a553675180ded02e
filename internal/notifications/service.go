package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"karaoke/internal/config"
	"karaoke/internal/services"
)

const userAgent = "karaoke/0.1.0"

// Service defines the notification surface exposed to run execution.
type Service interface {
	NotifyRunCompleted(ctx context.Context, workflow, item string, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, workflow, item string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runCompleted: cfg.Notifications.RunCompleted,
		runFailed:    cfg.Notifications.RunFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runCompleted bool
	runFailed    bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, workflow, item string, duration time.Duration) error {
	if !n.runCompleted {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:   "Karaoke - " + workflowTitle(workflow) + " Complete",
		message: fmt.Sprintf("✅ %s finished for %s in %s", workflow, strings.TrimSpace(item), duration),
		tags:    []string{"karaoke", workflow, "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, workflow, item string, err error) error {
	if !n.runFailed {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = services.Message(err)
	}
	data := payload{
		title:    "Karaoke - " + workflowTitle(workflow) + " Failed",
		message:  fmt.Sprintf("❌ %s failed for %s: %s", workflow, strings.TrimSpace(item), reason),
		tags:     []string{"karaoke", workflow, "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Karaoke - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"karaoke", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func workflowTitle(workflow string) string {
	switch workflow {
	case "alignline":
		return "Word Sync"
	case "realign":
		return "Realign"
	case "generate":
		return "Generate"
	default:
		return "Run"
	}
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, string, string, time.Duration) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, error) error            { return nil }
func (noopService) TestNotification(context.Context) error                                  { return nil }
