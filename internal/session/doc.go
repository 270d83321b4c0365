// Package session owns live generation jobs.
//
// Registry holds an in-memory snapshot per job behind a single RWMutex.
// States only move forward (pending, analyzing, generating_assets,
// generating_code, assembling, then complete or failed) and progress never
// decreases while a job is running. Readers always receive copies.
//
// Runner starts a detached goroutine per job that calls the generation
// collaborator phase by phase and publishes events on a per-job channel. A
// single forwarder drains that channel in order, waits out the
// first-broadcast delay, and hands each event to the hub only while the job
// is still registered, so a deleted job never broadcasts again. A recover
// boundary guarantees every job ends with exactly one terminal event.
//
// StatusService answers status queries. Live sessions report progress;
// otherwise the durable record and then the artifact bundle are consulted
// so a job that finished before a restart reports complete, and one that
// was lost reports SESSION_EXPIRED rather than not found.
package session
