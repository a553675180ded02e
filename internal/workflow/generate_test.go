package workflow

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"karaoke/internal/jobqueue"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/stage"
)

func TestGenerateSupportedNonEnglish(t *testing.T) {
	h := newHarness(t)
	h.library.lyrics = "hola mundo"
	h.library.lang = "es"
	status := &statusRecorder{}

	err := h.orch.Generate(context.Background(), media.Item{ID: "abc123", Title: "Song"}, status.sink)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	calls := h.trace.snapshot()
	wantPrefix := []string{"init", "getLyrics(Song)", "getAudio(original)", "upload", "getLanguage", "upload"}
	if len(calls) < len(wantPrefix) || !reflect.DeepEqual(calls[:len(wantPrefix)], wantPrefix) {
		t.Fatalf("unexpected call prefix: %v", calls)
	}
	if string(h.transfer.uploads[1]) != "hola mundo" {
		t.Fatalf("expected lyrics uploaded second, got %q", h.transfer.uploads[1])
	}

	// Separation, original video and metadata all finish before alignment starts.
	firstAlign := h.trace.index("enqueue(align:captions-line)")
	for _, call := range []string{"enqueue(split)", "getVideo(original)", "getInfo", "save(instruments)", "save(vocals)"} {
		idx := h.trace.index(call)
		if idx < 0 || idx > firstAlign {
			t.Fatalf("expected %s before line alignment, calls: %v", call, calls)
		}
	}
	if h.trace.index("enqueue(align:captions-word)") < 0 {
		t.Fatalf("expected word alignment on general queue, calls: %v", calls)
	}
	if n := len(h.queue.enqueuedOn("align_en")); n != 0 {
		t.Fatalf("expected no english fast path, got %d jobs", n)
	}
	for _, job := range h.queue.enqueuedOn("align") {
		if job.params.AudioURL != "https://results/vocals" {
			t.Fatalf("alignment must use separated vocals, got %q", job.params.AudioURL)
		}
		if job.params.Options == nil || job.params.Options.Lang != "es" {
			t.Fatalf("alignment options missing lang: %+v", job.params.Options)
		}
	}

	tail := calls[len(calls)-2:]
	if !reflect.DeepEqual(tail, []string{"getVideo(instruments)", "getVideo(vocals)"}) {
		t.Fatalf("expected stem videos last, got %v", tail)
	}

	saved := h.library.savedModes()
	if saved[0] != media.ModeInstruments || saved[1] != media.ModeVocals {
		t.Fatalf("expected instruments persisted before vocals, got %v", saved)
	}
	slices.Sort(saved)
	want := []media.Mode{media.ModeCaptionsLine, media.ModeCaptionsWord, media.ModeInstruments, media.ModeVocals}
	if !reflect.DeepEqual(saved, want) {
		t.Fatalf("persisted modes = %v, want %v", saved, want)
	}

	labels := status.snapshot()
	for _, label := range []string{StatusInitializing, StatusSearchingLyrics, StatusDownloadingAudio, StatusUploadingFiles, StatusDownloadingFiles} {
		if !slices.Contains(labels, label) {
			t.Fatalf("missing status %q in %v", label, labels)
		}
	}
}

func TestGenerateUnsupportedLanguageSkipsCaptions(t *testing.T) {
	h := newHarness(t)
	h.library.lyrics = "some lyrics"
	h.library.lang = "zz"

	if err := h.orch.Generate(context.Background(), media.Item{ID: "abc123"}, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n := h.trace.count("enqueue(align"); n != 0 {
		t.Fatalf("expected no alignment jobs, got %d: %v", n, h.trace.snapshot())
	}
	saved := h.library.savedModes()
	if !reflect.DeepEqual(saved, []media.Mode{media.ModeInstruments, media.ModeVocals}) {
		t.Fatalf("persisted modes = %v", saved)
	}
	if h.trace.index("getVideo(original)") < 0 || h.trace.index("getInfo") < 0 {
		t.Fatalf("expected original video and metadata, calls: %v", h.trace.snapshot())
	}
}

func TestGenerateWithoutLyricsPrunesAlignment(t *testing.T) {
	h := newHarness(t)

	if err := h.orch.Generate(context.Background(), media.Item{ID: "abc123"}, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if h.trace.index("getLanguage") >= 0 {
		t.Fatal("language must not be detected without lyrics")
	}
	if h.transfer.uploadCount() != 1 {
		t.Fatalf("expected only the audio upload, got %d", h.transfer.uploadCount())
	}
	if n := h.trace.count("enqueue(align"); n != 0 {
		t.Fatalf("expected no alignment jobs, got %d", n)
	}
}

func TestGenerateEnglishFastPathIssuesOneWordJob(t *testing.T) {
	h := newHarness(t)
	h.library.lyrics = "hello world"
	h.library.lang = "en"

	if err := h.orch.Generate(context.Background(), media.Item{ID: "abc123"}, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	english := h.queue.enqueuedOn("align_en")
	if len(english) != 1 {
		t.Fatalf("expected one english word job, got %d", len(english))
	}
	if english[0].params.Options.Mode != string(media.ModeCaptionsWord) {
		t.Fatalf("english queue got mode %q", english[0].params.Options.Mode)
	}
	if english[0].params.AudioURL != "https://uploads/1" {
		t.Fatalf("fast path must use the original audio url, got %q", english[0].params.AudioURL)
	}
	general := h.queue.enqueuedOn("align")
	if len(general) != 1 || general[0].params.Options.Mode != string(media.ModeCaptionsLine) {
		t.Fatalf("expected only a line job on the general queue, got %+v", general)
	}
	if n := h.trace.count("enqueue(align_en:captions-word)") + h.trace.count("enqueue(align:captions-word)"); n != 1 {
		t.Fatalf("word captions requested %d times", n)
	}

	words := 0
	for _, mode := range h.library.savedModes() {
		if mode == media.ModeCaptionsWord {
			words++
		}
	}
	if words != 1 {
		t.Fatalf("word captions persisted %d times", words)
	}
}

func TestGenerateSplitFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.library.lyrics = "hola"
	h.library.lang = "es"
	defaults := h.queue.results
	h.queue.results = func(queue string, params jobqueue.Params) *jobqueue.Result {
		if queue == "split" {
			return &jobqueue.Result{InstrumentsURL: "https://results/instruments"}
		}
		return defaults(queue, params)
	}

	err := h.orch.Generate(context.Background(), media.Item{ID: "abc123"}, nil)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if services.Message(err) != "Processing failed" {
		t.Fatalf("unexpected message %q", services.Message(err))
	}
	// Siblings still ran to completion before the failure surfaced.
	if h.trace.index("getVideo(original)") < 0 || h.trace.index("getInfo") < 0 {
		t.Fatalf("expected sibling stages to complete, calls: %v", h.trace.snapshot())
	}
	if n := h.trace.count("enqueue(align"); n != 0 {
		t.Fatalf("no alignment may start after a failed split, got %d", n)
	}
	if h.trace.index("getVideo(instruments)") >= 0 {
		t.Fatal("stem videos must not be requested after a failed split")
	}
}

func TestGenerateToleratesMissingAlignments(t *testing.T) {
	h := newHarness(t)
	h.library.lyrics = "hola"
	h.library.lang = "es"
	defaults := h.queue.results
	h.queue.results = func(queue string, params jobqueue.Params) *jobqueue.Result {
		if queue == "split" {
			return defaults(queue, params)
		}
		return nil
	}

	if err := h.orch.Generate(context.Background(), media.Item{ID: "abc123"}, nil); err != nil {
		t.Fatalf("expected success with partial artifacts, got %v", err)
	}
	saved := h.library.savedModes()
	if !reflect.DeepEqual(saved, []media.Mode{media.ModeInstruments, media.ModeVocals}) {
		t.Fatalf("persisted modes = %v", saved)
	}
	if h.trace.index("getVideo(vocals)") < 0 {
		t.Fatal("expected the run to reach the stem videos")
	}
}

func TestGenerateRejectsEmptyItem(t *testing.T) {
	h := newHarness(t)
	err := h.orch.Generate(context.Background(), media.Item{}, nil)
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
	if len(h.trace.snapshot()) != 0 {
		t.Fatalf("expected no collaborator calls, got %v", h.trace.snapshot())
	}
}

func TestAlignSkipsResultWithoutAlignmentURL(t *testing.T) {
	h := newHarness(t)
	h.queue.results = func(string, jobqueue.Params) *jobqueue.Result {
		return &jobqueue.Result{}
	}

	outcome := h.orch.align(context.Background(), media.Item{ID: "abc"}, alignRequest{
		audioURL:      "https://uploads/1",
		transcriptURL: "https://uploads/2",
		lang:          "es",
		mode:          media.ModeCaptionsLine,
	}, func(string) {})
	if outcome.Kind != stage.KindSkipped {
		t.Fatalf("expected skipped outcome, got %s", outcome.Kind)
	}
	if outcome.Error() != nil {
		t.Fatalf("skipped alignment must not raise, got %v", outcome.Error())
	}
	if n := h.trace.count("save("); n != 0 {
		t.Fatalf("expected no saves, got %d", n)
	}
}

func TestAlignRetriesTransientFetch(t *testing.T) {
	h := newHarness(t)
	h.transfer.failures["https://results/captions-line"] = 2

	outcome := h.orch.align(context.Background(), media.Item{ID: "abc"}, alignRequest{
		audioURL: "https://uploads/1",
		lang:     "es",
		mode:     media.ModeCaptionsLine,
	}, func(string) {})
	if outcome.Kind != stage.KindPersisted {
		t.Fatalf("expected persisted outcome, got %s (%v)", outcome.Kind, outcome.Err)
	}
	if got := h.transfer.fetches["https://results/captions-line"]; got != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", got)
	}
}

func TestAlignSkipsInvalidPayload(t *testing.T) {
	h := newHarness(t)
	h.library.saveErr = services.Wrap(services.ErrProcessing, "library", "save file", "Invalid alignment data", nil)

	outcome := h.orch.align(context.Background(), media.Item{ID: "abc"}, alignRequest{
		audioURL: "https://uploads/1",
		lang:     "es",
		mode:     media.ModeCaptionsWord,
	}, func(string) {})
	if outcome.Kind != stage.KindSkipped {
		t.Fatalf("expected skipped outcome, got %s", outcome.Kind)
	}
}

func TestSplitMalformedResultFails(t *testing.T) {
	h := newHarness(t)
	h.queue.results = func(string, jobqueue.Params) *jobqueue.Result {
		return &jobqueue.Result{VocalsURL: "https://results/vocals"}
	}

	result, err := h.orch.splitAudio(context.Background(), media.Item{ID: "abc"}, "https://uploads/1", func(string) {})
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if n := h.trace.count("save("); n != 0 {
		t.Fatalf("expected zero saves, got %d", n)
	}
	if n := h.trace.count("fetch("); n != 0 {
		t.Fatalf("expected no downloads, got %d", n)
	}
}

func TestSplitFetchExhaustionIsTransferError(t *testing.T) {
	h := newHarness(t)
	h.transfer.failures["https://results/vocals"] = 10

	_, err := h.orch.splitAudio(context.Background(), media.Item{ID: "abc"}, "https://uploads/1", func(string) {})
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("expected ErrTransfer, got %v", err)
	}
	if got := h.transfer.fetches["https://results/vocals"]; got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	if n := h.trace.count("save("); n != 0 {
		t.Fatalf("expected zero saves, got %d", n)
	}
}
