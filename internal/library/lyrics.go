package library

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"

	"karaoke/internal/fileutil"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/textutil"
)

// GetLyrics returns the lyrics for item. The item's own lyrics file wins; when
// it is missing, the shared _lyrics directory is searched for a file named
// after titleHint (case-insensitive) and a match is copied into the item.
// Absent lyrics yield "", nil.
func (l *Library) GetLyrics(ctx context.Context, item media.Item, titleHint string) (string, error) {
	path := filepath.Join(l.ItemDir(item), l.lyricsFile)
	text, err := readText(path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "library", "get lyrics", "Can't read lyrics", err)
	}
	if text != "" {
		return text, nil
	}

	shared := l.findSharedLyrics(titleHint)
	if shared == "" {
		return "", nil
	}
	text, err = readText(shared)
	if err != nil || text == "" {
		return "", nil
	}
	if err := cacheText(path, text); err != nil {
		logging.WithContext(ctx, l.logger).Warn("lyrics not cached in item directory",
			logging.String("source", shared),
			logging.Error(err),
			logging.String(logging.FieldEventType, "lyrics_cache_failed"),
		)
	}
	logging.WithContext(ctx, l.logger).Debug("lyrics found by title", logging.String("source", shared))
	return text, nil
}

// ImportLyrics copies a lyrics file from src into the item.
func (l *Library) ImportLyrics(ctx context.Context, item media.Item, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.ErrInput, "library", "import lyrics", "Can't read lyrics file", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return services.Wrap(services.ErrInput, "library", "import lyrics", "Lyrics is empty", nil)
	}
	if err := l.Init(ctx, item); err != nil {
		return err
	}
	dest := filepath.Join(l.ItemDir(item), l.lyricsFile)
	if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "import lyrics", "Can't write lyrics", err)
	}
	return nil
}

func (l *Library) findSharedLyrics(titleHint string) string {
	titleHint = strings.TrimSpace(titleHint)
	if titleHint == "" {
		return ""
	}
	dir := filepath.Join(l.root, sharedLyricsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	fold := cases.Fold()
	want := fold.String(textutil.SanitizeFileName(titleHint))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if fold.String(base) == want {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

// readText returns the trimmed content of path, or "" when it does not exist.
// cacheText writes text to path, creating the item directory on first use.
func cacheText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, []byte(text), 0o644)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff")), nil
}
