package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"karaoke/internal/config"
)

// ConfigOption adjusts a config built by NewConfig.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default config with every directory under a fresh
// temp dir and retry/poll timings shrunk to milliseconds.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Retry.InitialBackoffMS = 1
	cfg.Retry.MaxBackoffMS = 5
	cfg.Backend.PollInterval = 1

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithBackend points the transfer and queue endpoints at the given URLs,
// typically httptest servers.
func WithBackend(transferURL, queueURL string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Backend.TransferURL = transferURL
		cfg.Backend.QueueURL = queueURL
	}
}

// stubScript touches its last argument, which is where ffmpeg writes output.
const stubScript = "#!/bin/sh\nfor last; do :; done\n[ -n \"$last\" ] && : > \"$last\"\nexit 0\n"

// WithStubbedBinaries puts no-op executables for names (ffmpeg by default)
// first on PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg"}
	}
	return func(t testing.TB, base string, _ *config.Config) {
		t.Helper()
		bin := filepath.Join(base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bin, err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte(stubScript), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp dir NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LibraryDir)
}
