// Package transfer talks to the transient-storage backend: it uploads input
// payloads to obtain fetchable URLs and fetches result payloads by URL.
//
// Every call is one-shot. Failures are classified so callers can decide on
// retries: network errors, timeouts, 429 and 5xx responses carry
// services.ErrTransient in addition to services.ErrTransfer, while other
// 4xx responses and successful responses that carry an application error
// envelope are terminal.
package transfer
