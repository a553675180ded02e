// Package config loads, normalizes, and validates karaoke configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// KARAOKE_API_TOKEN and KARAOKE_LLM_API_KEY. The Config type centralizes every knob the CLI and the
// orchestrator need: library/state directories, backend endpoints, queue
// names, the result-fetch retry policy, notifications, the optional language
// detector, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
