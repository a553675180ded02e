// Package llm detects the language of song lyrics with an OpenAI-compatible
// chat completion API (OpenRouter by default).
//
// The client sends a JSON-only prompt and expects {"lang": "<ISO 639-1>",
// "confidence": 0..1}. Requests are retried on HTTP 408, 429 and 5xx and on
// network timeouts with capped exponential backoff; Retry-After is honoured.
//
// Detector adapts the client to the library's language detector contract and
// drops answers below a minimum confidence.
package llm
