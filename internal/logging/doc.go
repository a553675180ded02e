// Package logging builds the log/slog loggers used by the CLI and the
// workflow orchestrator.
//
// It provides a console handler tuned for humans (component and subject
// header, one field per line) and a JSON handler for machine ingestion, plus
// attribute helpers and the standard field names every component logs with.
// Context values stamped through the services package (item, stage, workflow,
// correlation ID) are lifted into attributes by WithContext.
package logging
