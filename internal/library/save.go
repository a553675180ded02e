package library

import (
	"context"
	"fmt"
	"os"

	"karaoke/internal/fileutil"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
)

// SaveFile persists payload as the (mode, format) artifact of item. Caption
// payloads must be non-empty alignment records. An existing artifact is
// replaced atomically.
func (l *Library) SaveFile(ctx context.Context, item media.Item, mode media.Mode, format media.Format, payload []byte) error {
	if !mode.Valid() {
		return services.Wrap(services.ErrInput, "library", "save file", "Unknown mode", fmt.Errorf("mode %q", mode))
	}
	if format == "" {
		format = mode.DefaultFormat()
	}
	if len(payload) == 0 {
		return services.Wrap(services.ErrProcessing, "library", "save file", "Refusing to save empty "+string(mode), nil)
	}
	if mode.IsCaption() && format == media.FormatJSON {
		if err := ValidateAlignment(payload); err != nil {
			return services.Wrap(services.ErrProcessing, "library", "save file", "Invalid alignment data", err)
		}
	}

	dir := l.ItemDir(item)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "save file", "Can't create item directory", err)
	}
	path := l.Path(item, mode, format)
	if err := fileutil.WriteFileAtomic(path, payload, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "save file", "Can't write "+string(mode), err)
	}
	l.record(ctx, item, mode, format, path, int64(len(payload)))
	logging.WithContext(ctx, l.logger).Info("artifact saved",
		logging.Mode(string(mode)),
		logging.String("format", string(format)),
		logging.Int("bytes", len(payload)),
		logging.String(logging.FieldEventType, "artifact_saved"),
	)
	return nil
}
