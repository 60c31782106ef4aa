// Package sqlite provides a SQLite-based implementation of the metadata
// and vector ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file backs:
//
//   - DocumentStore: documents, sections, chunks of every generation and
//     ingestion status
//   - VectorStore: chunk vectors with their metadata, loaded into an exact
//     in-process index on open and written through on every change
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory as NNN_name.up.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.paperlens/data/metadata.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
