// Package apiclient talks to a running landing daemon over its HTTP API.
//
// The CLI uses it for status, listing, inspection, deletion and archive
// downloads. Every call carries the configured bearer token and the caller's
// owner id; non-2xx replies decode into *Error so callers can branch on the
// daemon's reason code.
package apiclient
