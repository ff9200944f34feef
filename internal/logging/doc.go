// Package logging assembles structured slog loggers and formatting helpers used
// across pressroom services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, subject IDs, stages, and correlation IDs. The "auto"
// format picks the console handler when stdout is a terminal and JSON
// otherwise. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
package logging
