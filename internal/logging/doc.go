// Package logging constructs slog loggers for console and JSON output and
// provides the attribute helpers shared by the scan pipeline.
package logging
