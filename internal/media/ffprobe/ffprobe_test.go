package ffprobe

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

const sampleReport = `{
  "streams": [
    {"index": 0, "codec_name": "aac", "codec_type": "audio", "duration": "201.50", "sample_rate": "44100", "channels": 2}
  ],
  "format": {"filename": "original.m4a", "format_name": "mov,mp4,m4a", "duration": "201.53",
             "tags": {"TITLE": "Song", "artist": "Band"}}
}`

func TestProbeWithDecodesReport(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		gotArgs = args
		return []byte(sampleReport), nil
	}

	result, err := ProbeWith(context.Background(), run, "", "/lib/song/original.m4a")
	if err != nil {
		t.Fatalf("ProbeWith: %v", err)
	}
	if gotArgs[len(gotArgs)-1] != "/lib/song/original.m4a" || !slices.Contains(gotArgs, "--") {
		t.Fatalf("path must follow --, got %v", gotArgs)
	}
	if !result.HasAudio() || result.HasVideo() {
		t.Fatalf("unexpected stream detection: %+v", result.Streams)
	}
	if got := result.Duration(); got != 201530*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if result.Tag("title") != "Song" || result.Tag("ARTIST") != "Band" {
		t.Fatalf("unexpected tags %v", result.Format.Tags)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "12.5"}, {CodecType: "video", Duration: "bad"}},
		Format:  Format{Duration: "N/A"},
	}
	if got := result.Duration(); got != 12500*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if (Result{}).Duration() != 0 {
		t.Fatal("expected zero duration for empty report")
	}
}

func TestProbeWithErrors(t *testing.T) {
	if _, err := ProbeWith(context.Background(), nil, "ffprobe", " "); err == nil {
		t.Fatal("expected empty path to fail")
	}
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := ProbeWith(context.Background(), failing, "ffprobe", "x.m4a"); err == nil {
		t.Fatal("expected runner failure to propagate")
	}
	garbage := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	}
	if _, err := ProbeWith(context.Background(), garbage, "ffprobe", "x.m4a"); err == nil {
		t.Fatal("expected parse failure")
	}
}
