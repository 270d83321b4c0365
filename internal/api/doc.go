// Package api defines wire-format types and converters for the HTTP and
// WebSocket API layer. It translates artifact bundles, durable records, and
// live session snapshots into transport-friendly DTOs that web and CLI
// clients can render without coupling to internal types.
//
// # Key Types
//
// Event: the single message shape delivered over the progress hub
// (generation_progress, tool_use, generation_complete, generation_error,
// landing_error, subscribed, unsubscribed).
//
// LandingSummary: transport representation of a persisted bundle.
//
// LandingStatus: answer to the status query, tagged with the store that
// produced it (live, record, bundle).
//
// DaemonStatus: aggregated runtime information including hub membership and
// preflight results.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds in UTC.
package api
