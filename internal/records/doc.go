// Package records persists completed landings in SQLite.
//
// A row is written once a bundle has been assembled, so its presence means the
// job reached its terminal success state. Status queries consult this store
// before the artifact bundle when no live session exists, which is how a
// client reconnecting after a daemon restart learns its landing finished.
//
// The database is a small index, not the source of bundle contents. Schema
// changes bump schemaVersion in schema.go; operators delete the database file
// to adopt the new schema, and bundles on disk still answer status queries in
// the meantime.
package records
