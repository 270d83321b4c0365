// Package artifact owns the on-disk landing bundles.
//
// A bundle lives at <root>/<ownerId>/<landingId>/ and holds index.html,
// metadata.json, assets/, and sounds/. Every exported operation validates the
// identifiers it is handed before touching the filesystem: landing IDs must be
// short alphanumeric-plus-hyphen tokens and owner IDs small positive integers.
// Client supplied asset paths are decoded, cleaned, and checked to stay under
// the bundle's assets/ or sounds/ subtree; anything else is refused with
// services.ErrInvalidPath and audit logged.
//
// metadata.json is written last during assembly, so its presence is what marks
// a bundle as complete. The session package relies on that when it answers
// status queries after a restart.
package artifact
