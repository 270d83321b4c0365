// Package daemonctl launches and stops the landing daemon process on behalf of
// the CLI.
//
// Liveness is judged through the daemon's HTTP health endpoint; the pid file
// written by daemonrun identifies the process to signal. Stop sends SIGTERM
// first and escalates to SIGKILL only after the grace period, cleaning up the
// pid and lock files the killed process could not remove.
package daemonctl
