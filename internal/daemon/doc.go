// Package daemon coordinates the long-running landing process.
//
// It wires configuration, the session runner, the artifact store, durable
// records, and the progress hub into a single lifecycle with flock-based
// locking to prevent multiple instances. Start launches the hub liveness
// sweeper, the idle-session reaper, preflight checks, and the HTTP API (chi
// router plus the /ws endpoint). Stop cancels in-flight jobs, which then fail
// with a terminal event, and waits for their goroutines.
//
// Keep orchestration logic here: pipeline phases live in internal/session
// while the daemon focuses on startup, shutdown, and request plumbing.
package daemon
