package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"karaoke/internal/config"
	"karaoke/internal/notifications"
	"karaoke/internal/services"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapture(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunFailed(context.Background(), "generate", "abc", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsRunEvents(t *testing.T) {
	srv, got := newCapture(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyRunCompleted(ctx, "generate", "Song", 90*time.Second); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	failure := services.Wrap(services.ErrProcessing, "split", "wait", "Processing failed", nil)
	if err := svc.NotifyRunFailed(ctx, "realign", "Song", failure); err != nil {
		t.Fatalf("NotifyRunFailed: %v", err)
	}

	if len(*got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(*got))
	}
	done := (*got)[0]
	if done.title != "Karaoke - Generate Complete" {
		t.Fatalf("unexpected title %q", done.title)
	}
	if !strings.Contains(done.body, "Song in 1m30s") {
		t.Fatalf("unexpected body %q", done.body)
	}
	if done.tags != "karaoke,generate,completed" {
		t.Fatalf("unexpected tags %q", done.tags)
	}
	failed := (*got)[1]
	if failed.title != "Karaoke - Realign Failed" || failed.priority != "high" {
		t.Fatalf("unexpected failure headers %+v", failed)
	}
	if !strings.HasSuffix(failed.body, ": Processing failed") {
		t.Fatalf("expected the short error message, got %q", failed.body)
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	srv, got := newCapture(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.RunCompleted = false
	cfg.Notifications.RunFailed = false

	svc := notifications.NewService(&cfg)
	_ = svc.NotifyRunCompleted(context.Background(), "generate", "Song", time.Second)
	_ = svc.NotifyRunFailed(context.Background(), "generate", "Song", errors.New("boom"))
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if len(*got) != 1 || (*got)[0].title != "Karaoke - Test" {
		t.Fatalf("expected only the test notification, got %+v", *got)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
