package library

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"karaoke/internal/fileutil"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
)

// Info is the item metadata kept in info.json. Unknown keys written by other
// tools are preserved in Extra.
type Info struct {
	ID        string                     `json:"id"`
	Title     string                     `json:"title,omitempty"`
	Artist    string                     `json:"artist,omitempty"`
	Duration  float64                    `json:"duration,omitempty"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// GetInfo returns the metadata for item, writing a minimal info.json when none
// exists yet.
func (l *Library) GetInfo(ctx context.Context, item media.Item) (*Info, error) {
	path := filepath.Join(l.ItemDir(item), infoFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info, decodeErr := decodeInfo(data)
		if decodeErr != nil {
			return nil, services.Wrap(services.ErrProcessing, "library", "get info", "Metadata is corrupted", decodeErr)
		}
		if info.ID == "" {
			info.ID = item.ID
		}
		return info, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, services.Wrap(services.ErrConfiguration, "library", "get info", "Can't read metadata", err)
	}

	info := &Info{ID: item.ID, Title: item.Title, UpdatedAt: time.Now().UTC()}
	l.probeInfo(ctx, item, info)
	encoded, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "get info", "Can't create item directory", err)
	}
	if err := fileutil.WriteFileAtomic(path, encoded, 0o644); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "get info", "Can't write metadata", err)
	}
	return info, nil
}

// probeInfo fills duration and tags from the original audio. Missing audio or
// an unusable ffprobe leave the fields empty.
func (l *Library) probeInfo(ctx context.Context, item media.Item, info *Info) {
	path := l.Path(item, media.ModeOriginal, media.FormatM4A)
	if !fileExists(path) {
		return
	}
	result, err := l.probe(ctx, path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, l.logger), "audio probe failed", "probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffprobe or set library.ffprobe_binary"),
		)
		return
	}
	info.Duration = result.Duration().Seconds()
	if info.Title == "" {
		info.Title = result.Tag("title")
	}
	info.Artist = result.Tag("artist")
}

func decodeInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, known := range []string{"id", "title", "artist", "duration", "updated_at"} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		info.Extra = raw
	}
	return &info, nil
}
