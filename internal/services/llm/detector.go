package llm

import (
	"context"
	"fmt"
)

// DefaultMinConfidence is used when a Detector has no threshold set.
const DefaultMinConfidence = 0.5

// Detector reports the language of lyrics using a Client.
type Detector struct {
	Client        *Client
	MinConfidence float64
}

// Detect returns the detected language code, or "" when the model is unsure.
func (d Detector) Detect(ctx context.Context, text string) (string, error) {
	if d.Client == nil {
		return "", fmt.Errorf("llm detect: client not configured")
	}
	detection, err := d.Client.DetectLanguage(ctx, text)
	if err != nil {
		return "", err
	}
	threshold := d.MinConfidence
	if threshold <= 0 {
		threshold = DefaultMinConfidence
	}
	if detection.Confidence < threshold {
		return "", nil
	}
	return detection.Lang, nil
}
