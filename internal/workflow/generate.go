package workflow

import (
	"context"
	"time"

	"karaoke/internal/jobqueue"
	"karaoke/internal/language"
	"karaoke/internal/media"
	"karaoke/internal/stage"
)

// generateRun is the state threaded through one Generate call.
type generateRun struct {
	item          media.Item
	lyrics        string
	lang          string
	audio         []byte
	audioURL      string
	transcriptURL string
	split         *jobqueue.Result
}

func (r *generateRun) hasLyrics() bool { return r.lyrics != "" }

// Generate produces the separated stems, their videos and, when lyrics are
// available in a supported language, line and word captions for item.
func (o *Orchestrator) Generate(ctx context.Context, item media.Item, status StatusFunc) error {
	start := time.Now()
	ctx, status, err := o.begin(ctx, WorkflowGenerate, item, status)
	if err != nil {
		return err
	}
	run := &generateRun{item: item}

	steps := []step{
		{name: "init", label: StatusInitializing, run: func(ctx context.Context) error {
			return o.library.Init(ctx, item)
		}},
		{name: "lyrics", label: StatusSearchingLyrics, run: func(ctx context.Context) (err error) {
			run.lyrics, err = o.library.GetLyrics(ctx, item, item.Title)
			return err
		}},
		{name: "audio", label: StatusDownloadingAudio, run: func(ctx context.Context) (err error) {
			run.audio, err = o.library.GetAudio(ctx, item, media.ModeOriginal)
			return err
		}},
		{name: "upload audio", label: StatusUploadingFiles, run: func(ctx context.Context) (err error) {
			run.audioURL, err = o.transfer.Upload(ctx, run.audio)
			run.audio = nil
			return err
		}},
		{name: "language", when: run.hasLyrics, run: func(ctx context.Context) (err error) {
			run.lang, err = o.library.GetLanguage(ctx, item, run.lyrics, false)
			return err
		}},
		{name: "upload lyrics", when: run.hasLyrics, run: func(ctx context.Context) (err error) {
			run.transcriptURL, err = o.transfer.Upload(ctx, []byte(run.lyrics))
			return err
		}},
		{name: "separate", run: func(ctx context.Context) error {
			return o.separate(ctx, run, status)
		}},
		{name: "align", when: func() bool {
			return run.hasLyrics() && run.lang != "" && language.IsSupported(run.lang)
		}, run: func(ctx context.Context) error {
			return o.alignVocals(ctx, run, status)
		}},
		{name: "videos", run: func(ctx context.Context) error {
			if _, err := o.library.GetVideo(ctx, item, media.ModeInstruments); err != nil {
				return err
			}
			_, err := o.library.GetVideo(ctx, item, media.ModeVocals)
			return err
		}},
	}
	return o.finish(ctx, start, o.runSteps(ctx, status, steps))
}

// separate runs source separation alongside the original video, the metadata
// and, for English lyrics, word alignment against the original audio.
func (o *Orchestrator) separate(ctx context.Context, run *generateRun, status StatusFunc) error {
	tasks := []func() error{
		func() (err error) {
			run.split, err = o.splitAudio(ctx, run.item, run.audioURL, status)
			return err
		},
		func() error {
			_, err := o.library.GetVideo(ctx, run.item, media.ModeOriginal)
			return err
		},
		func() error {
			_, err := o.library.GetInfo(ctx, run.item)
			return err
		},
	}
	if run.hasLyrics() && language.IsEnglish(run.lang) {
		tasks = append(tasks, func() error {
			return o.align(ctx, run.item, alignRequest{
				audioURL:      run.audioURL,
				transcriptURL: run.transcriptURL,
				lang:          run.lang,
				mode:          media.ModeCaptionsWord,
			}, status).Error()
		})
	}
	return stage.Join(tasks...)
}

// alignVocals aligns the lyrics against the isolated vocals: line captions
// always, word captions only when the English fast path did not cover them.
func (o *Orchestrator) alignVocals(ctx context.Context, run *generateRun, status StatusFunc) error {
	modes := []media.Mode{media.ModeCaptionsLine}
	if !language.IsEnglish(run.lang) {
		modes = append(modes, media.ModeCaptionsWord)
	}
	tasks := make([]func() error, 0, len(modes))
	for _, mode := range modes {
		req := alignRequest{
			audioURL:      run.split.VocalsURL,
			transcriptURL: run.transcriptURL,
			lang:          run.lang,
			mode:          mode,
		}
		tasks = append(tasks, func() error {
			return o.align(ctx, run.item, req, status).Error()
		})
	}
	return stage.Join(tasks...)
}
