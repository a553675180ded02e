package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"karaoke/internal/jobqueue"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/transfer"
)

// resyncRun is the state threaded through AlignLine and Realign.
type resyncRun struct {
	lyrics        string
	lang          string
	alignments    []json.RawMessage
	audio         []byte
	audioURL      string
	inputURL      string
	alignmentsURL string
}

// AlignLine derives word captions from the item's persisted line captions.
// Every precondition is checked before anything is uploaded.
func (o *Orchestrator) AlignLine(ctx context.Context, item media.Item, status StatusFunc) error {
	start := time.Now()
	ctx, status, err := o.begin(ctx, WorkflowAlignLine, item, status)
	if err != nil {
		return err
	}
	run := &resyncRun{}

	steps := []step{
		{name: "line alignments", run: func(ctx context.Context) error {
			entries, err := o.library.GetAlignments(ctx, item, media.ModeCaptionsLine)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return services.Wrap(services.ErrInput, WorkflowAlignLine, "load alignments", "Line level sync not found", nil)
			}
			run.alignments = entries
			return nil
		}},
		{name: "language", run: func(ctx context.Context) error {
			lang, err := o.library.GetLanguage(ctx, item, "", false)
			if err != nil {
				return err
			}
			if lang == "" {
				return services.Wrap(services.ErrInput, WorkflowAlignLine, "detect language", "Can't detect language", nil)
			}
			run.lang = lang
			return nil
		}},
		{name: "vocals", run: func(ctx context.Context) error {
			audio, err := o.library.GetAudio(ctx, item, media.ModeVocals)
			if err != nil && !errors.Is(err, services.ErrNotFound) {
				return err
			}
			if len(audio) == 0 {
				return services.Wrap(services.ErrInput, WorkflowAlignLine, "load vocals", "Can't find vocals", err)
			}
			run.audio = audio
			return nil
		}},
		{name: "upload", label: StatusUploadingFiles, run: func(ctx context.Context) error {
			audioURL, err := o.transfer.Upload(ctx, run.audio)
			if err != nil {
				return err
			}
			run.audio = nil
			encoded, err := json.Marshal(run.alignments)
			if err != nil {
				return fmt.Errorf("encode alignments: %w", err)
			}
			alignmentsURL, err := o.transfer.Upload(ctx, encoded)
			if err != nil {
				return err
			}
			run.audioURL, run.inputURL = audioURL, alignmentsURL
			return nil
		}},
		{name: "align words", run: func(ctx context.Context) error {
			job, err := o.waitJob(ctx, o.queues.AlignLine, jobqueue.Params{
				AudioURL:      run.audioURL,
				AlignmentsURL: run.inputURL,
				Options:       &jobqueue.Options{Lang: run.lang},
			}, status)
			if err != nil {
				return err
			}
			return run.requireResult(WorkflowAlignLine, job)
		}},
		{name: "save", label: StatusDownloadingFiles, run: func(ctx context.Context) error {
			// One-shot fetch: the inputs were validated up front, so a failed
			// download here is final and is not retried.
			payload, err := o.transfer.Fetch(ctx, run.alignmentsURL, transfer.EncodingText)
			if err != nil {
				return err
			}
			return o.library.SaveFile(ctx, item, media.ModeCaptionsWord, media.FormatJSON, payload)
		}},
	}
	return o.finish(ctx, start, o.runSteps(ctx, status, steps))
}

// Realign redoes one caption mode from scratch. The language is always
// re-detected from the current lyrics.
func (o *Orchestrator) Realign(ctx context.Context, item media.Item, mode media.Mode, status StatusFunc) error {
	start := time.Now()
	ctx, status, err := o.begin(ctx, WorkflowRealign, item, status)
	if err != nil {
		return err
	}
	if !mode.IsCaption() {
		return o.finish(ctx, start, services.Wrap(services.ErrInput, WorkflowRealign, "validate mode",
			"Only captions can be realigned", fmt.Errorf("mode %q", mode)))
	}
	run := &resyncRun{}
	var audioMode media.Mode
	var queue string

	steps := []step{
		{name: "lyrics", label: StatusSearchingLyrics, run: func(ctx context.Context) error {
			lyrics, err := o.library.GetLyrics(ctx, item, item.Title)
			if err != nil {
				return err
			}
			if lyrics == "" {
				return services.Wrap(services.ErrInput, WorkflowRealign, "load lyrics", "Lyrics is empty", nil)
			}
			run.lyrics = lyrics
			return nil
		}},
		{name: "language", run: func(ctx context.Context) error {
			lang, err := o.library.GetLanguage(ctx, item, run.lyrics, true)
			if err != nil {
				return err
			}
			if lang == "" {
				return services.Wrap(services.ErrInput, WorkflowRealign, "detect language", "Can't detect language", nil)
			}
			run.lang = lang
			audioMode, queue = RealignRoute(lang, o.queues)
			return nil
		}},
		{name: "audio", label: StatusDownloadingAudio, run: func(ctx context.Context) error {
			audio, err := o.library.GetAudio(ctx, item, audioMode)
			if err != nil && !errors.Is(err, services.ErrNotFound) {
				return err
			}
			if len(audio) == 0 {
				message := "Can't find audio"
				if audioMode == media.ModeVocals {
					message = "Can't find vocals"
				}
				return services.Wrap(services.ErrInput, WorkflowRealign, "load audio", message, err)
			}
			run.audio = audio
			return nil
		}},
		{name: "upload", label: StatusUploadingFiles, run: func(ctx context.Context) (err error) {
			if run.audioURL, err = o.transfer.Upload(ctx, run.audio); err != nil {
				return err
			}
			run.audio = nil
			run.inputURL, err = o.transfer.Upload(ctx, []byte(run.lyrics))
			return err
		}},
		{name: "align", run: func(ctx context.Context) error {
			job, err := o.waitJob(ctx, queue, jobqueue.Params{
				AudioURL:      run.audioURL,
				TranscriptURL: run.inputURL,
				Options:       &jobqueue.Options{Mode: string(mode), Lang: run.lang},
			}, status)
			if err != nil {
				return err
			}
			return run.requireResult(WorkflowRealign, job)
		}},
		{name: "save", label: StatusDownloadingFiles, run: func(ctx context.Context) error {
			payload, err := o.fetcher.Fetch(ctx, run.alignmentsURL, transfer.EncodingText)
			if err != nil {
				return err
			}
			return o.library.SaveFile(ctx, item, mode, media.FormatJSON, payload)
		}},
	}
	return o.finish(ctx, start, o.runSteps(ctx, status, steps))
}

// requireResult fails when a resync job came back without alignments.
func (r *resyncRun) requireResult(workflow string, job *jobqueue.Job) error {
	url := resultOf(job).AlignmentsURL
	if url == "" {
		cause := errors.New("job returned no alignments")
		if job != nil && job.Error != "" {
			cause = errors.New(job.Error)
		}
		return services.Wrap(services.ErrProcessing, workflow, "wait", "Sync failed", cause)
	}
	r.alignmentsURL = url
	return nil
}
