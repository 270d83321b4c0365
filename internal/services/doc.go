// Package services defines shared utilities consumed by the generation
// pipeline, the artifact store, and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp landing IDs, owner IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and ReasonCode which
//     turns a marker into the stable reason string clients receive.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error classification, observability) stays uniform across the daemon.
package services
