package stage

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"karaoke/internal/services"
)

func TestOutcomeError(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		outcome Outcome
		want    error
		kind    Kind
	}{
		{"persisted", Persisted("align", "captions-line"), nil, KindPersisted},
		{"skipped", Skipped("align", "no alignment url"), nil, KindSkipped},
		{"failed", Failed("align", boom), boom, KindFailed},
		{"failed nil", Failed("align", nil), nil, KindPersisted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Error(); got != tt.want {
				t.Fatalf("Error() = %v, want %v", got, tt.want)
			}
			if tt.outcome.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s", tt.outcome.Kind, tt.kind)
			}
		})
	}
}

func TestJoinWaitsForAllSiblings(t *testing.T) {
	var finished atomic.Int32
	first := services.Wrap(services.ErrProcessing, "split", "wait", "Processing failed", nil)
	second := errors.New("second")

	err := Join(
		func() error {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return first
		},
		func() error {
			finished.Add(1)
			return second
		},
		func() error {
			time.Sleep(40 * time.Millisecond)
			finished.Add(1)
			return nil
		},
	)
	if !errors.Is(err, first) {
		t.Fatalf("expected first error in launch order, got %v", err)
	}
	if finished.Load() != 3 {
		t.Fatalf("expected every task to finish before Join returned, got %d", finished.Load())
	}
}

func TestJoinSkipsNilTasks(t *testing.T) {
	ran := false
	err := Join(nil, func() error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected nil error and task run, got %v ran=%v", err, ran)
	}
}
