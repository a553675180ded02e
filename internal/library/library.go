package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"karaoke/internal/config"
	"karaoke/internal/fileutil"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/media/ffprobe"
	"karaoke/internal/runstore"
	"karaoke/internal/services"
	"karaoke/internal/services/llm"
)

const (
	itemFileName     = "item.json"
	infoFileName     = "info.json"
	languageFileName = "language"
	lockFileName     = ".lock"
	sharedLyricsDir  = "_lyrics"
)

// Recorder receives every artifact the library persists.
type Recorder interface {
	RecordArtifact(ctx context.Context, artifact runstore.Artifact) error
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ProbeFunc reads stream and container metadata from a media file.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Options configures a Library.
type Options struct {
	Root          string
	LyricsFile    string
	FFmpegBinary  string
	FFprobeBinary string
	Detector      Detector
	Recorder      Recorder
	Runner        CommandRunner
	Prober        ProbeFunc
	Logger        *slog.Logger
}

// Library stores items under a root directory.
type Library struct {
	root       string
	lyricsFile string
	ffmpeg     string
	detector   Detector
	recorder   Recorder
	run        CommandRunner
	probe      ProbeFunc
	logger     *slog.Logger
}

// New validates opts and returns a Library.
func New(opts Options) (*Library, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("library: root directory is required")
	}
	lyricsFile := strings.TrimSpace(opts.LyricsFile)
	if lyricsFile == "" {
		lyricsFile = "lyrics.txt"
	}
	ffmpeg := strings.TrimSpace(opts.FFmpegBinary)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	runner := opts.Runner
	if runner == nil {
		runner = execRunner
	}
	prober := opts.Prober
	if prober == nil {
		binary := opts.FFprobeBinary
		prober = func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Probe(ctx, binary, path)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Library{
		root:       root,
		lyricsFile: lyricsFile,
		ffmpeg:     ffmpeg,
		detector:   opts.Detector,
		recorder:   opts.Recorder,
		run:        runner,
		probe:      prober,
		logger:     logging.NewComponentLogger(logger, "library"),
	}, nil
}

// NewFromConfig builds a Library from the paths and library sections. When an
// LLM key is configured lyrics are classified by the model first; a configured
// default language is the static fallback.
func NewFromConfig(cfg *config.Config, recorder Recorder, logger *slog.Logger) (*Library, error) {
	if cfg == nil {
		return nil, errors.New("library: config is nil")
	}
	var detectors []Detector
	if cfg.LLMEnabled() {
		client := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		})
		detectors = append(detectors, llm.Detector{Client: client, MinConfidence: cfg.LLM.MinConfidence})
	}
	if cfg.Library.DefaultLanguage != "" {
		detectors = append(detectors, StaticDetector(cfg.Library.DefaultLanguage))
	}
	return New(Options{
		Root:          cfg.Paths.LibraryDir,
		LyricsFile:    cfg.Library.LyricsFile,
		FFmpegBinary:  cfg.Library.FFmpegBinary,
		FFprobeBinary: cfg.Library.FFprobeBinary,
		Detector:      ChainDetector(detectors...),
		Recorder:      recorder,
		Logger:        logger,
	})
}

// WithDetector returns a copy of l that uses detector for language detection.
func (l *Library) WithDetector(detector Detector) *Library {
	clone := *l
	clone.detector = detector
	return &clone
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// ItemDir returns the directory holding item's files.
func (l *Library) ItemDir(item media.Item) string {
	return filepath.Join(l.root, item.Key())
}

// Path returns where the artifact for (item, mode, format) lives.
func (l *Library) Path(item media.Item, mode media.Mode, format media.Format) string {
	return filepath.Join(l.ItemDir(item), string(mode)+"."+string(format))
}

type itemStamp struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Init creates the item directory and refreshes its item.json stamp.
func (l *Library) Init(ctx context.Context, item media.Item) error {
	if err := item.Validate(); err != nil {
		return services.Wrap(services.ErrInput, "library", "init", "Missing item id", err)
	}
	dir := l.ItemDir(item)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "init", "Can't create item directory", err)
	}

	now := time.Now().UTC()
	stamp := itemStamp{ID: item.ID, Title: item.Title, CreatedAt: now, UpdatedAt: now}
	if data, err := os.ReadFile(filepath.Join(dir, itemFileName)); err == nil {
		var existing itemStamp
		if json.Unmarshal(data, &existing) == nil && !existing.CreatedAt.IsZero() {
			stamp.CreatedAt = existing.CreatedAt
			if stamp.Title == "" {
				stamp.Title = existing.Title
			}
		}
	}
	data, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode item stamp: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, itemFileName), data, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "init", "Can't write item stamp", err)
	}
	logging.WithContext(ctx, l.logger).Debug("item initialized", logging.String("dir", dir))
	return nil
}

// Lock takes an exclusive per-item lock. The returned func releases it.
func (l *Library) Lock(item media.Item) (func() error, error) {
	dir := l.ItemDir(item)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "lock", "Can't create item directory", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "lock", "Can't lock item", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrInput, "library", "lock", "Another workflow is running for this item",
			fmt.Errorf("lock held: %s", lock.Path()))
	}
	return lock.Unlock, nil
}

func (l *Library) record(ctx context.Context, item media.Item, mode media.Mode, format media.Format, path string, size int64) {
	if l.recorder == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	err := l.recorder.RecordArtifact(ctx, runstore.Artifact{
		ItemID: item.ID,
		Mode:   string(mode),
		Format: string(format),
		Path:   path,
		Size:   size,
		RunID:  runID,
	})
	if err != nil {
		logging.WithContext(ctx, l.logger).Warn("artifact not recorded in run journal",
			logging.Mode(string(mode)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "artifact_record_failed"),
		)
	}
}

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		tail := strings.TrimSpace(string(output))
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return fmt.Errorf("%s: %w: %s", name, err, tail)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
