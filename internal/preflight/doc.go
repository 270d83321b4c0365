// Package preflight provides readiness checks for the filesystem paths and
// external services the landing daemon depends on.
//
// The daemon runs RunAll once at startup and logs every failure; the results
// are also surfaced through GET /api/status so operators can see why
// generation jobs might fail before starting one. Failed checks never stop
// the daemon: a missing API key still leaves bundle browsing and asset
// serving usable.
package preflight
