// Package sqlite provides SQLite-backed storage for built indexes and the
// review audit log.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation.
//
//   - IndexStore: one database per corpus fingerprint at <cache>/<fingerprint>/index.db,
//     with meta, chunks and vectors tables. Vectors are little-endian float32 blobs.
//   - Store: the review log at ~/.submittal/reviews.db.
//
// # Schema
//
// The review log schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Index databases are written once and never migrated; a format change means a
// rebuild.
//
// # Thread Safety
//
// All operations are thread-safe. The review log runs in WAL mode; index
// databases are read-only once renamed into place.
package sqlite
