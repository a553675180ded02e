package language

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// English is the code that receives the fast-path word alignment queue.
const English = "en"

// supported is the closed set of codes the alignment backend accepts.
var supported = map[string]struct{}{}

var supportedCodes = []string{
	"af", "am", "an", "ar", "as", "az", "ba", "bg", "bn", "bpy", "bs", "ca",
	"cmn", "cs", "cy", "da", "de", "el", "en", "eo", "es", "et", "eu", "fa",
	"fi", "fr", "ga", "gd", "gn", "grc", "gu", "hak", "hi", "hr", "ht", "hu",
	"hy", "hyw", "ia", "id", "is", "it", "ja", "jbo", "ka", "kk", "kl", "kn",
	"ko", "kok", "ku", "ky", "la", "lfn", "lt", "lv", "mi", "mk", "ml", "mr",
	"ms", "mt", "my", "nb", "nci", "ne", "nl", "om", "or", "pa", "pap", "pl",
	"pt", "py", "quc", "ro", "ru", "sd", "shn", "si", "sk", "sl", "sq", "sr",
	"sv", "sw", "ta", "te", "tn", "tr", "tt", "ur", "uz", "vi", "yue", "zh",
}

// wordForms maps spelled-out names some detectors emit.
var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"finnish":    "fi",
	"turkish":    "tr",
}

func init() {
	for _, code := range supportedCodes {
		supported[code] = struct{}{}
	}
}

// Normalize reduces a detector-reported code to its short base form.
// Returns "" when the input cannot be interpreted as a language.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	code = strings.ReplaceAll(code, "_", "-")
	if _, ok := supported[code]; ok {
		return code
	}
	if mapped, ok := wordForms[code]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	short := base.String()
	if short == "und" {
		return ""
	}
	return short
}

// IsSupported reports whether code is in the supported alignment set.
func IsSupported(code string) bool {
	normalized := Normalize(code)
	if normalized == "" {
		return false
	}
	_, ok := supported[normalized]
	return ok
}

// IsEnglish reports whether code normalizes to English.
func IsEnglish(code string) bool {
	return Normalize(code) == English
}

// Supported returns the sorted supported codes.
func Supported() []string {
	out := make([]string, len(supportedCodes))
	copy(out, supportedCodes)
	sort.Strings(out)
	return out
}

// DisplayName returns a human-readable English name for code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	normalized := Normalize(trimmed)
	if normalized != "" {
		if tag, err := language.Parse(normalized); err == nil {
			if name := display.English.Languages().Name(tag); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(trimmed)
}
