package workflow

import (
	"fmt"

	"karaoke/internal/config"
	"karaoke/internal/language"
	"karaoke/internal/media"
	"karaoke/internal/services"
)

// RouteQueue picks the queue a job producing mode is sent to. English word
// captions go to the English alignment queue, every other caption mode to the
// general alignment queue, and audio stems to the separation queue.
func RouteQueue(lang string, mode media.Mode, queues config.Queues) (string, error) {
	switch {
	case mode == media.ModeCaptionsWord && language.IsEnglish(lang):
		return queues.AlignEN, nil
	case mode.IsCaption():
		return queues.Align, nil
	case mode.IsAudio():
		return queues.Split, nil
	default:
		return "", services.Wrap(services.ErrInput, "routing", "route queue", "No queue for "+string(mode),
			fmt.Errorf("mode %q", mode))
	}
}

// RealignRoute picks the audio source and queue for a realignment. English
// realigns against the original audio on the English queue; everything else
// uses the isolated vocals on the general queue.
func RealignRoute(lang string, queues config.Queues) (media.Mode, string) {
	if language.IsEnglish(lang) {
		return media.ModeOriginal, queues.AlignEN
	}
	return media.ModeVocals, queues.Align
}
