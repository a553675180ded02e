package workflow

import (
	"errors"
	"testing"

	"karaoke/internal/config"
	"karaoke/internal/media"
	"karaoke/internal/services"
)

func TestRouteQueue(t *testing.T) {
	queues := config.Default().Queues
	tests := []struct {
		lang string
		mode media.Mode
		want string
	}{
		{"en", media.ModeCaptionsWord, queues.AlignEN},
		{"en", media.ModeCaptionsLine, queues.Align},
		{"es", media.ModeCaptionsWord, queues.Align},
		{"es", media.ModeCaptionsLine, queues.Align},
		{"", media.ModeCaptionsWord, queues.Align},
		{"en", media.ModeVocals, queues.Split},
		{"", media.ModeInstruments, queues.Split},
	}
	for _, tt := range tests {
		got, err := RouteQueue(tt.lang, tt.mode, queues)
		if err != nil {
			t.Fatalf("RouteQueue(%q, %s): %v", tt.lang, tt.mode, err)
		}
		if got != tt.want {
			t.Fatalf("RouteQueue(%q, %s) = %q, want %q", tt.lang, tt.mode, got, tt.want)
		}
	}
}

func TestRouteQueueRejectsVideoModes(t *testing.T) {
	_, err := RouteQueue("en", media.ModeVocalsVideo, config.Default().Queues)
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestRealignRoute(t *testing.T) {
	queues := config.Default().Queues
	mode, queue := RealignRoute("en", queues)
	if mode != media.ModeOriginal || queue != queues.AlignEN {
		t.Fatalf("english realign = (%s, %s)", mode, queue)
	}
	mode, queue = RealignRoute("de", queues)
	if mode != media.ModeVocals || queue != queues.Align {
		t.Fatalf("non-english realign = (%s, %s)", mode, queue)
	}
}
