// Package fetcher collects job result payloads with bounded retry.
//
// Job results live on a backend the orchestrator does not control, so
// transient failures while downloading them are retried with exponential
// backoff. Terminal failures (client errors, application error envelopes)
// surface immediately.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"karaoke/internal/config"
	"karaoke/internal/logging"
	"karaoke/internal/services"
	"karaoke/internal/transfer"
)

// Source performs a single fetch attempt.
type Source interface {
	Fetch(ctx context.Context, url string, encoding transfer.Encoding) ([]byte, error)
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// PolicyFromConfig reads the [retry] section.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	initial, maximum := cfg.RetryBackoff()
	return Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     maximum,
	}
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	cfg := config.Default()
	return PolicyFromConfig(&cfg)
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt <= 1 {
		return p.InitialBackoff
	}
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff || backoff <= 0 {
			return p.MaxBackoff
		}
	}
	return backoff
}

// Fetcher retries transient fetch failures under a Policy.
type Fetcher struct {
	source Source
	policy Policy
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger attaches a logger for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logging.NewComponentLogger(logger, "fetcher")
		}
	}
}

// WithSleep overrides the wait between attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// New wraps source with the retry policy.
func New(source Source, policy Policy, opts ...Option) *Fetcher {
	f := &Fetcher{
		source: source,
		policy: policy.normalized(),
		logger: logging.NewNop(),
		sleep:  SleepWithContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Policy returns the effective policy.
func (f *Fetcher) Policy() Policy {
	return f.policy
}

// Fetch downloads url, retrying failed responses and transport errors. After MaxAttempts
// failed attempts it returns an error marked services.ErrTransfer.
func (f *Fetcher) Fetch(ctx context.Context, url string, encoding transfer.Encoding) ([]byte, error) {
	if f == nil || f.source == nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetcher", "fetch", "Result fetcher unavailable", nil)
	}
	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		payload, err := f.source.Fetch(ctx, url, encoding)
		if err == nil {
			if attempt > 1 {
				f.logger.Info("result fetched after retry",
					logging.Int("attempt", attempt),
					logging.String(logging.FieldEventType, "fetch_recovered"),
				)
			}
			return payload, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrTransfer, "fetcher", "fetch", "Download cancelled", ctxErr)
		}
		if !retryable(err) {
			return nil, terminal(err)
		}
		if attempt == f.policy.MaxAttempts {
			break
		}
		backoff := f.policy.Backoff(attempt)
		f.logger.Warn("result fetch failed, retrying",
			logging.Duration("backoff", backoff),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", f.policy.MaxAttempts),
			logging.Error(err),
			logging.String(logging.FieldEventType, "fetch_retry"),
			logging.String(logging.FieldErrorHint, "check connectivity to the transfer backend"),
		)
		if err := f.sleep(ctx, backoff); err != nil {
			return nil, services.Wrap(services.ErrTransfer, "fetcher", "fetch", "Download cancelled", err)
		}
	}
	f.logger.Error("result fetch exhausted retries",
		logging.Int("max_attempts", f.policy.MaxAttempts),
		logging.Error(lastErr),
		logging.String(logging.FieldEventType, "fetch_exhausted"),
	)
	return nil, services.Wrap(services.ErrTransfer, "fetcher", "fetch", "Download failed", lastErr)
}

// retryable reports whether another attempt may succeed. Any HTTP status
// counts, 404 included, since a result is often not yet visible in storage.
// An application error envelope in a successful response is final.
func retryable(err error) bool {
	switch {
	case errors.Is(err, transfer.ErrApplication), errors.Is(err, services.ErrConfiguration):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var status *transfer.StatusError
	if errors.As(err, &status) {
		return true
	}
	return services.IsTransient(err)
}

func terminal(err error) error {
	if errors.Is(err, services.ErrTransfer) {
		return err
	}
	return services.Wrap(services.ErrTransfer, "fetcher", "fetch", "Download failed", err)
}

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
