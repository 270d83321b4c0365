// Package notifications delivers landing events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Completed and failed landings can be toggled independently.
package notifications
