package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"karaoke/internal/config"
	"karaoke/internal/fetcher"
	"karaoke/internal/jobqueue"
	"karaoke/internal/library"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/transfer"
)

// trace records collaborator calls across goroutines.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *trace) add(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, fmt.Sprintf(format, args...))
}

func (t *trace) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *trace) index(call string) int {
	for i, c := range t.snapshot() {
		if c == call {
			return i
		}
	}
	return -1
}

func (t *trace) count(prefix string) int {
	n := 0
	for _, c := range t.snapshot() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type savedFile struct {
	mode    media.Mode
	format  media.Format
	payload []byte
}

type fakeLibrary struct {
	trace      *trace
	mu         sync.Mutex
	lyrics     string
	lang       string
	audio      map[media.Mode][]byte
	alignments []json.RawMessage
	saves      []savedFile
	forced     []bool
	saveErr    error
}

func newFakeLibrary(tr *trace) *fakeLibrary {
	return &fakeLibrary{
		trace: tr,
		audio: map[media.Mode][]byte{
			media.ModeOriginal: []byte("original-audio"),
			media.ModeVocals:   []byte("vocals-audio"),
		},
	}
}

func (f *fakeLibrary) Init(_ context.Context, _ media.Item) error {
	f.trace.add("init")
	return nil
}

func (f *fakeLibrary) GetLyrics(_ context.Context, _ media.Item, titleHint string) (string, error) {
	f.trace.add("getLyrics(%s)", titleHint)
	return f.lyrics, nil
}

func (f *fakeLibrary) GetLanguage(_ context.Context, _ media.Item, _ string, force bool) (string, error) {
	f.trace.add("getLanguage")
	f.mu.Lock()
	f.forced = append(f.forced, force)
	f.mu.Unlock()
	return f.lang, nil
}

func (f *fakeLibrary) GetAudio(_ context.Context, _ media.Item, mode media.Mode) ([]byte, error) {
	f.trace.add("getAudio(%s)", mode)
	data, ok := f.audio[mode]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "library", "get audio", "Can't find "+string(mode)+" audio", nil)
	}
	return data, nil
}

func (f *fakeLibrary) GetVideo(_ context.Context, _ media.Item, mode media.Mode) ([]byte, error) {
	f.trace.add("getVideo(%s)", mode)
	return []byte("video"), nil
}

func (f *fakeLibrary) GetInfo(_ context.Context, item media.Item) (*library.Info, error) {
	f.trace.add("getInfo")
	return &library.Info{ID: item.ID, Title: item.Title}, nil
}

func (f *fakeLibrary) GetAlignments(_ context.Context, _ media.Item, mode media.Mode) ([]json.RawMessage, error) {
	f.trace.add("getAlignments(%s)", mode)
	return f.alignments, nil
}

func (f *fakeLibrary) SaveFile(_ context.Context, _ media.Item, mode media.Mode, format media.Format, payload []byte) error {
	f.trace.add("save(%s)", mode)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedFile{mode: mode, format: format, payload: append([]byte(nil), payload...)})
	return nil
}

func (f *fakeLibrary) savedModes() []media.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	modes := make([]media.Mode, 0, len(f.saves))
	for _, s := range f.saves {
		modes = append(modes, s.mode)
	}
	return modes
}

type fakeTransfer struct {
	trace    *trace
	mu       sync.Mutex
	uploads  [][]byte
	payloads map[string][]byte
	failures map[string]int
	fetches  map[string]int
}

func newFakeTransfer(tr *trace) *fakeTransfer {
	return &fakeTransfer{
		trace: tr,
		payloads: map[string][]byte{
			"https://results/instruments":   []byte("instruments-audio"),
			"https://results/vocals":        []byte("vocals-audio"),
			"https://results/captions-line": []byte(`[{"text":"line"}]`),
			"https://results/captions-word": []byte(`[{"text":"word"}]`),
		},
		failures: map[string]int{},
		fetches:  map[string]int{},
	}
}

func (f *fakeTransfer) Upload(_ context.Context, payload []byte) (string, error) {
	f.trace.add("upload")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, append([]byte(nil), payload...))
	return fmt.Sprintf("https://uploads/%d", len(f.uploads)), nil
}

func (f *fakeTransfer) Fetch(_ context.Context, url string, _ transfer.Encoding) ([]byte, error) {
	f.trace.add("fetch(%s)", url)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[url]++
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, services.Wrap(services.ErrTransient, "transfer", "fetch", "Download failed",
			fmt.Errorf("%w: connection reset", services.ErrTransfer))
	}
	payload, ok := f.payloads[url]
	if !ok {
		return nil, services.Wrap(services.ErrTransfer, "transfer", "fetch", "Download failed", fmt.Errorf("404 for %s", url))
	}
	return payload, nil
}

func (f *fakeTransfer) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type enqueued struct {
	queue  string
	params jobqueue.Params
}

type fakeQueue struct {
	trace   *trace
	mu      sync.Mutex
	jobs    map[string]enqueued
	order   []enqueued
	results func(queue string, params jobqueue.Params) *jobqueue.Result
	labels  []string
}

func newFakeQueue(tr *trace) *fakeQueue {
	return &fakeQueue{
		trace: tr,
		jobs:  map[string]enqueued{},
		results: func(queue string, params jobqueue.Params) *jobqueue.Result {
			if queue == "split" {
				return &jobqueue.Result{
					InstrumentsURL: "https://results/instruments",
					VocalsURL:      "https://results/vocals",
				}
			}
			mode := "captions-word"
			if params.Options != nil && params.Options.Mode != "" {
				mode = params.Options.Mode
			}
			return &jobqueue.Result{AlignmentsURL: "https://results/" + mode}
		},
	}
}

func (f *fakeQueue) Enqueue(_ context.Context, queue string, params jobqueue.Params) (string, error) {
	mode := ""
	if params.Options != nil {
		mode = params.Options.Mode
	}
	if mode != "" {
		f.trace.add("enqueue(%s:%s)", queue, mode)
	} else {
		f.trace.add("enqueue(%s)", queue)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("job-%d", len(f.order)+1)
	f.jobs[id] = enqueued{queue: queue, params: params}
	f.order = append(f.order, enqueued{queue: queue, params: params})
	return id, nil
}

func (f *fakeQueue) Wait(_ context.Context, queue, jobID string, status jobqueue.StatusFunc) (*jobqueue.Job, error) {
	f.mu.Lock()
	req := f.jobs[jobID]
	f.mu.Unlock()
	if status != nil {
		status(queue + " 100%")
	}
	result := f.results(queue, req.params)
	state := jobqueue.StateCompleted
	if result == nil {
		state = jobqueue.StateFailed
	}
	return &jobqueue.Job{ID: jobID, Queue: queue, State: state, Progress: 100, Result: result}, nil
}

func (f *fakeQueue) enqueuedOn(queue string) []enqueued {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []enqueued
	for _, e := range f.order {
		if e.queue == queue {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	trace    *trace
	library  *fakeLibrary
	transfer *fakeTransfer
	queue    *fakeQueue
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tr := &trace{}
	h := &harness{
		trace:    tr,
		library:  newFakeLibrary(tr),
		transfer: newFakeTransfer(tr),
		queue:    newFakeQueue(tr),
	}
	results := fetcher.New(h.transfer, fetcher.Policy{MaxAttempts: 3}, fetcher.WithSleep(func(context.Context, time.Duration) error {
		return nil
	}))
	orch, err := New(Dependencies{
		Library:  h.library,
		Transfer: h.transfer,
		Queue:    h.queue,
		Fetcher:  results,
		Queues:   config.Default().Queues,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

type statusRecorder struct {
	mu     sync.Mutex
	labels []string
}

func (s *statusRecorder) sink(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
}

func (s *statusRecorder) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}
