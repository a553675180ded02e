package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"karaoke/internal/jobqueue"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/stage"
	"karaoke/internal/transfer"
)

type alignRequest struct {
	audioURL      string
	transcriptURL string
	lang          string
	mode          media.Mode
}

// align requests one caption mode and persists the result. A job that ends
// without an alignment URL, or whose payload is unusable, is skipped rather
// than failed.
func (o *Orchestrator) align(ctx context.Context, item media.Item, req alignRequest, status StatusFunc) stage.Outcome {
	name := "align " + string(req.mode)
	ctx = services.WithStage(ctx, name)
	outcome := o.alignOnce(ctx, item, req, status, name)
	outcome.Log(ctx, o.logger)
	return outcome
}

func (o *Orchestrator) alignOnce(ctx context.Context, item media.Item, req alignRequest, status StatusFunc, name string) stage.Outcome {
	queue, err := RouteQueue(req.lang, req.mode, o.queues)
	if err != nil {
		return stage.Failed(name, err)
	}
	job, err := o.waitJob(ctx, queue, jobqueue.Params{
		AudioURL:      req.audioURL,
		TranscriptURL: req.transcriptURL,
		Options:       &jobqueue.Options{Mode: string(req.mode), Lang: req.lang},
	}, status)
	if err != nil {
		return stage.Failed(name, err)
	}
	url := resultOf(job).AlignmentsURL
	if url == "" {
		return stage.Skipped(name, "job returned no alignments")
	}
	payload, err := o.fetcher.Fetch(ctx, url, transfer.EncodingText)
	if err != nil {
		return stage.Failed(name, err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return stage.Skipped(name, "alignment payload is empty")
	}
	if err := o.library.SaveFile(ctx, item, req.mode, media.FormatJSON, payload); err != nil {
		if errors.Is(err, services.ErrProcessing) {
			return stage.Skipped(name, services.Message(err))
		}
		return stage.Failed(name, err)
	}
	return stage.Persisted(name, string(req.mode))
}

// splitAudio separates the audio at audioURL into instruments and vocals,
// persists both and returns the job result. Any missing stem URL fails.
func (o *Orchestrator) splitAudio(ctx context.Context, item media.Item, audioURL string, status StatusFunc) (*jobqueue.Result, error) {
	ctx = services.WithStage(ctx, "split")
	queue, err := RouteQueue("", media.ModeVocals, o.queues)
	if err != nil {
		return nil, err
	}
	job, err := o.waitJob(ctx, queue, jobqueue.Params{AudioURL: audioURL}, status)
	if err != nil {
		return nil, err
	}
	result := resultOf(job)
	if result.InstrumentsURL == "" || result.VocalsURL == "" {
		detail := "job returned no stems"
		if job != nil && job.Error != "" {
			detail = job.Error
		}
		return nil, services.Wrap(services.ErrProcessing, "split", "wait", "Processing failed", errors.New(detail))
	}

	status(StatusDownloadingFiles)
	var instruments, vocals []byte
	err = stage.Join(
		func() (err error) {
			instruments, err = o.fetcher.Fetch(ctx, result.InstrumentsURL, transfer.EncodingBinary)
			return err
		},
		func() (err error) {
			vocals, err = o.fetcher.Fetch(ctx, result.VocalsURL, transfer.EncodingBinary)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	for _, stem := range []struct {
		mode    media.Mode
		payload []byte
	}{
		{media.ModeInstruments, instruments},
		{media.ModeVocals, vocals},
	} {
		if len(stem.payload) == 0 {
			return nil, services.Wrap(services.ErrProcessing, "split", "fetch", "Processing failed",
				fmt.Errorf("%s stem is empty", stem.mode))
		}
		if err := o.library.SaveFile(ctx, item, stem.mode, media.FormatM4A, stem.payload); err != nil {
			return nil, err
		}
	}
	logging.WithContext(ctx, o.logger).Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("instruments_bytes", len(instruments)),
		logging.Int("vocals_bytes", len(vocals)),
	)
	return &result, nil
}
