package media

import (
	"errors"
	"fmt"
	"strings"

	"karaoke/internal/textutil"
)

// Mode identifies one derived artifact kind.
type Mode string

const (
	ModeOriginal         Mode = "original"
	ModeVocals           Mode = "vocals"
	ModeInstruments      Mode = "instruments"
	ModeOriginalVideo    Mode = "original-video"
	ModeInstrumentsVideo Mode = "instruments-video"
	ModeVocalsVideo      Mode = "vocals-video"
	ModeCaptionsWord     Mode = "captions-word"
	ModeCaptionsLine     Mode = "captions-line"
)

// Format is the file format an artifact is persisted in.
type Format string

const (
	FormatJSON Format = "json"
	FormatM4A  Format = "m4a"
	FormatMP4  Format = "mp4"
	FormatTXT  Format = "txt"
)

// String returns the mode identifier.
func (m Mode) String() string { return string(m) }

// IsCaption reports whether m is a caption mode.
func (m Mode) IsCaption() bool {
	return m == ModeCaptionsWord || m == ModeCaptionsLine
}

// IsAudio reports whether m names an audio track.
func (m Mode) IsAudio() bool {
	switch m {
	case ModeOriginal, ModeVocals, ModeInstruments:
		return true
	default:
		return false
	}
}

// IsVideo reports whether m names a video artifact.
func (m Mode) IsVideo() bool {
	switch m {
	case ModeOriginalVideo, ModeInstrumentsVideo, ModeVocalsVideo:
		return true
	default:
		return false
	}
}

// Video returns the video mode that pairs with audio mode m.
func (m Mode) Video() (Mode, bool) {
	switch m {
	case ModeOriginal:
		return ModeOriginalVideo, true
	case ModeVocals:
		return ModeVocalsVideo, true
	case ModeInstruments:
		return ModeInstrumentsVideo, true
	default:
		return "", false
	}
}

// DefaultFormat returns the format artifacts of mode m are stored in.
func (m Mode) DefaultFormat() Format {
	switch {
	case m.IsCaption():
		return FormatJSON
	case m.IsVideo():
		return FormatMP4
	default:
		return FormatM4A
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m.IsAudio() || m.IsVideo() || m.IsCaption()
}

// ParseCaptionMode accepts "line", "word", or a full caption mode name.
func ParseCaptionMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "line", string(ModeCaptionsLine):
		return ModeCaptionsLine, nil
	case "word", string(ModeCaptionsWord):
		return ModeCaptionsWord, nil
	default:
		return "", fmt.Errorf("unknown caption mode %q (want line or word)", value)
	}
}

// ErrEmptyItemID is returned by Item.Validate when no ID is set.
var ErrEmptyItemID = errors.New("item id is required")

// Item is the unit of work: a stable external ID plus an optional title hint.
type Item struct {
	ID    string
	Title string
}

// Validate checks that the item can be processed.
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrEmptyItemID
	}
	return nil
}

// Key returns a filesystem-safe directory name for the item. Case is kept
// since external IDs are case sensitive.
func (i Item) Key() string {
	key := strings.Trim(textutil.SanitizeFileName(i.ID), ". ")
	key = strings.ReplaceAll(key, " ", "_")
	if key == "" {
		return "unknown"
	}
	return key
}

// Label returns the title hint when present, otherwise the ID.
func (i Item) Label() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return i.ID
}
