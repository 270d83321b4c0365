// Package logging assembles structured slog loggers and formatting helpers used
// across the landing daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code tags log lines with landing
// IDs, owners, phases, and correlation IDs. NewNop returns a discarding logger for
// tests and wiring code that cannot fail.
package logging
