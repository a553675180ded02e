package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"karaoke/internal/jobqueue"
	"karaoke/internal/testsupport"
)

const testAlignment = `[{"text":"hello world","start":0.5,"end":1.5}]`

// fakeBackend serves the transfer and queue APIs from one httptest server.
// Every job completes on its first poll.
type fakeBackend struct {
	srv *httptest.Server

	mu        sync.Mutex
	blobs     map[string][]byte
	submitted map[string][]jobqueue.Params
	splitFail bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		blobs:     make(map[string][]byte),
		submitted: make(map[string][]jobqueue.Params),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transfer/upload", func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read upload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": b.store(payload)})
	})
	mux.HandleFunc("GET /blobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		payload, ok := b.blobs[r.PathValue("id")]
		b.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("POST /queue/queues/{queue}/jobs", func(w http.ResponseWriter, r *http.Request) {
		var params jobqueue.Params
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode params: %v", err)
		}
		queue := r.PathValue("queue")
		b.mu.Lock()
		b.submitted[queue] = append(b.submitted[queue], params)
		id := fmt.Sprintf("%s-%d", queue, len(b.submitted[queue]))
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	})
	mux.HandleFunc("GET /queue/queues/{queue}/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		queue := r.PathValue("queue")
		job := jobqueue.Job{ID: r.PathValue("id"), Queue: queue, State: jobqueue.StateCompleted, Progress: 100}
		switch queue {
		case "split":
			if b.failSplit() {
				job.State = jobqueue.StateFailed
				job.Error = "separation crashed"
				break
			}
			job.Result = &jobqueue.Result{
				InstrumentsURL: b.store([]byte("instruments-audio")),
				VocalsURL:      b.store([]byte("vocals-audio")),
			}
		default:
			job.Result = &jobqueue.Result{AlignmentsURL: b.store([]byte(testAlignment))}
		}
		_ = json.NewEncoder(w).Encode(job)
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) store(payload []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("b%d", len(b.blobs)+1)
	b.blobs[id] = payload
	return b.srv.URL + "/blobs/" + id
}

func (b *fakeBackend) failSplit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.splitFail
}

func (b *fakeBackend) jobs(queue string) []jobqueue.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]jobqueue.Params(nil), b.submitted[queue]...)
}

type cliTestEnv struct {
	backend    *fakeBackend
	configPath string
	libraryDir string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	backend := newFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"KARAOKE_API_TOKEN", "KARAOKE_LLM_API_KEY", "KARAOKE_TRANSFER_URL", "KARAOKE_QUEUE_URL", "KARAOKE_AMQP_URL"} {
		t.Setenv(key, "")
	}

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
library_dir = %q
log_dir = %q
state_dir = %q

[backend]
transfer_url = %q
queue_url = %q
poll_interval = 1

[retry]
max_attempts = 2
initial_backoff_ms = 1
max_backoff_ms = 2

[logging]
level = "error"
`, cfg.Paths.LibraryDir, cfg.Paths.LogDir, cfg.Paths.StateDir,
		backend.srv.URL+"/transfer", backend.srv.URL+"/queue")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		backend:    backend,
		configPath: configPath,
		libraryDir: cfg.Paths.LibraryDir,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteText(t, path, content)
	return path
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}
