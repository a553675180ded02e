package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"karaoke/internal/fileutil"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
)

// GetAudio returns the audio track stored for mode.
func (l *Library) GetAudio(ctx context.Context, item media.Item, mode media.Mode) ([]byte, error) {
	if !mode.IsAudio() {
		return nil, services.Wrap(services.ErrInput, "library", "get audio", "Unknown audio mode", fmt.Errorf("mode %q", mode))
	}
	data, err := os.ReadFile(l.Path(item, mode, media.FormatM4A))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "library", "get audio", "Can't find "+string(mode)+" audio", err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "library", "get audio", "Can't read audio", err)
	}
	return data, nil
}

// GetVideo returns the video that pairs with audio mode. The original video
// is rendered from the original audio over a still frame when it was never
// imported; stem videos are muxed from the original video and the separated
// audio. Rendered videos are persisted and reused on later calls.
func (l *Library) GetVideo(ctx context.Context, item media.Item, mode media.Mode) ([]byte, error) {
	videoMode, ok := mode.Video()
	if !ok {
		return nil, services.Wrap(services.ErrInput, "library", "get video", "Unknown audio mode", fmt.Errorf("mode %q", mode))
	}
	path := l.Path(item, videoMode, media.FormatMP4)
	if !fileExists(path) {
		if err := l.renderVideo(ctx, item, mode, videoMode, path); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "get video", "Can't read video", err)
	}
	return data, nil
}

func (l *Library) renderVideo(ctx context.Context, item media.Item, audioMode, videoMode media.Mode, dest string) error {
	audioPath := l.Path(item, audioMode, media.FormatM4A)
	if !fileExists(audioPath) {
		return services.Wrap(services.ErrNotFound, "library", "get video", "Can't find "+string(audioMode)+" audio",
			fmt.Errorf("missing %s", audioPath))
	}

	tmp := filepath.Join(filepath.Dir(dest), ".render-"+filepath.Base(dest))
	_ = os.Remove(tmp)
	var args []string
	if audioMode == media.ModeOriginal {
		args = []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-f", "lavfi", "-i", "color=c=black:s=1280x720:r=25",
			"-i", audioPath,
			"-map", "0:v:0", "-map", "1:a:0",
			"-c:v", "libx264", "-tune", "stillimage", "-pix_fmt", "yuv420p",
			"-c:a", "copy", "-shortest",
			tmp,
		}
	} else {
		original, err := l.originalVideoPath(ctx, item)
		if err != nil {
			return err
		}
		args = []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", original,
			"-i", audioPath,
			"-map", "0:v:0", "-map", "1:a:0",
			"-c", "copy", "-shortest",
			tmp,
		}
	}

	logger := logging.WithContext(ctx, l.logger)
	logger.Debug("rendering video",
		logging.Mode(string(videoMode)),
		logging.String("binary", l.ffmpeg),
	)
	if err := l.run(ctx, l.ffmpeg, args...); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrProcessing, "library", "get video", "Can't render "+string(videoMode), err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrConfiguration, "library", "get video", "Can't store "+string(videoMode), err)
	}
	var size int64
	if info, err := os.Stat(dest); err == nil {
		size = info.Size()
	}
	l.record(ctx, item, videoMode, media.FormatMP4, dest, size)
	logger.Info("video rendered",
		logging.Mode(string(videoMode)),
		logging.String("path", dest),
		logging.String(logging.FieldEventType, "video_rendered"),
	)
	return nil
}

func (l *Library) originalVideoPath(ctx context.Context, item media.Item) (string, error) {
	path := l.Path(item, media.ModeOriginalVideo, media.FormatMP4)
	if fileExists(path) {
		return path, nil
	}
	if err := l.renderVideo(ctx, item, media.ModeOriginal, media.ModeOriginalVideo, path); err != nil {
		return "", err
	}
	return path, nil
}

// Import copies a source media file into the item as mode. Only the original
// audio and the original video can be imported; everything else is derived.
func (l *Library) Import(ctx context.Context, item media.Item, mode media.Mode, src string) (string, error) {
	if mode != media.ModeOriginal && mode != media.ModeOriginalVideo {
		return "", services.Wrap(services.ErrInput, "library", "import", "Only original audio or video can be imported",
			fmt.Errorf("mode %q", mode))
	}
	if !fileExists(src) {
		return "", services.Wrap(services.ErrInput, "library", "import", "Can't find source file", fmt.Errorf("missing %s", src))
	}
	if err := l.Init(ctx, item); err != nil {
		return "", err
	}
	format := mode.DefaultFormat()
	dest := l.Path(item, mode, format)
	tmp := filepath.Join(filepath.Dir(dest), ".import-"+filepath.Base(dest))
	if err := fileutil.CopyFileVerified(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrConfiguration, "library", "import", "Can't copy source file", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrConfiguration, "library", "import", "Can't store source file", err)
	}
	// A new source invalidates videos rendered from the previous one.
	for _, derived := range []media.Mode{media.ModeInstrumentsVideo, media.ModeVocalsVideo} {
		_ = os.Remove(l.Path(item, derived, media.FormatMP4))
	}
	var size int64
	if info, err := os.Stat(dest); err == nil {
		size = info.Size()
	}
	l.record(ctx, item, mode, format, dest, size)
	return dest, nil
}
