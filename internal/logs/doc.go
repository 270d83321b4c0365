// Package logs tails the daemon's log files for the CLI.
//
// The daemon writes one file per run and points landing.log at the newest.
// Tail reads the last N lines or everything after a byte offset, optionally
// waiting for new output, and Filter narrows lines to a single landing so a
// user can follow one job through JSON or console formatted logs.
package logs
