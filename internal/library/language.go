package library

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"karaoke/internal/fileutil"
	"karaoke/internal/language"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
)

// Detector identifies the language of a lyrics text.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, text string) (string, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// StaticDetector always reports code.
func StaticDetector(code string) Detector {
	return DetectorFunc(func(context.Context, string) (string, error) {
		return code, nil
	})
}

// ChainDetector asks each detector in turn and returns the first non-empty
// code. Errors are only reported when no detector answers.
func ChainDetector(detectors ...Detector) Detector {
	var chain []Detector
	for _, d := range detectors {
		if d != nil {
			chain = append(chain, d)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return DetectorFunc(func(ctx context.Context, text string) (string, error) {
		var errs []error
		for _, d := range chain {
			code, err := d.Detect(ctx, text)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if language.Normalize(code) != "" {
				return code, nil
			}
		}
		return "", errors.Join(errs...)
	})
}

// GetLanguage returns the language code for item. The cached sidecar is used
// unless force is set. When text is empty the item's lyrics are used as the
// detection input. An undetectable language yields "", nil.
func (l *Library) GetLanguage(ctx context.Context, item media.Item, text string, force bool) (string, error) {
	sidecar := filepath.Join(l.ItemDir(item), languageFileName)
	if !force {
		cached, err := readText(sidecar)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "library", "get language", "Can't read language", err)
		}
		if code := language.Normalize(cached); code != "" {
			return code, nil
		}
	}
	if l.detector == nil {
		return "", nil
	}
	if strings.TrimSpace(text) == "" {
		lyrics, err := l.GetLyrics(ctx, item, item.Title)
		if err != nil {
			return "", err
		}
		text = lyrics
	}
	if text == "" {
		return "", nil
	}

	raw, err := l.detector.Detect(ctx, text)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, l.logger), "language detection failed", "language_detect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set library.default_language or pass --lang"),
		)
		return "", nil
	}
	code := language.Normalize(raw)
	if code == "" {
		return "", nil
	}
	if err := l.SetLanguage(ctx, item, code); err != nil {
		return "", err
	}
	logging.WithContext(ctx, l.logger).Info("language detected",
		logging.Lang(code),
		logging.String("language_name", language.DisplayName(code)),
		logging.String(logging.FieldEventType, "language_detected"),
	)
	return code, nil
}

// SetLanguage writes the language sidecar for item.
func (l *Library) SetLanguage(ctx context.Context, item media.Item, code string) error {
	code = language.Normalize(code)
	if code == "" {
		return services.Wrap(services.ErrInput, "library", "set language", "Unknown language", nil)
	}
	if err := l.Init(ctx, item); err != nil {
		return err
	}
	path := filepath.Join(l.ItemDir(item), languageFileName)
	if err := fileutil.WriteFileAtomic(path, []byte(code+"\n"), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "set language", "Can't write language", err)
	}
	return nil
}
