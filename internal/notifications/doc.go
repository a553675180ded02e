// Package notifications delivers workflow run events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Run completion
// and failure notices can each be switched off in the [notifications]
// section.
package notifications
