package preflight

import (
	"context"

	"karaoke/internal/config"
	"karaoke/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckJournal(ctx, cfg),
	}
	results = append(results, CheckTools(deps.FFmpeg(cfg.Library.FFmpegBinary), deps.FFprobe(cfg.Library.FFprobeBinary))...)
	results = append(results, CheckEndpoint(ctx, "Transfer backend", cfg.Backend.TransferURL, cfg.Backend.APIToken))

	switch cfg.Backend.QueueDriver {
	case config.QueueDriverAMQP:
		results = append(results, CheckBroker("Queue broker", cfg.Backend.AMQPURL))
	default:
		results = append(results, CheckEndpoint(ctx, "Queue backend", cfg.Backend.QueueURL, cfg.Backend.APIToken))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
