// Package store provides persistence for mlra.
//
// # Architecture
//
// Three narrow interfaces describe what callers need:
//
//   - KVStore: opaque values under string keys (the settings snapshot lives here)
//   - DocumentStore: the local registry of papers sent to the retriever
//   - ResultStore: the last fetched result envelope per experiment task
//
// Store combines them. Three implementations exist:
//
//   - SQLiteStore: one database file, via modernc.org/sqlite ("sqlite") or
//     github.com/mattn/go-sqlite3 ("sqlite3")
//   - FileStore: one JSON file per record under a root directory
//   - MockStore: in-memory, with error injection for tests
//
// Open selects one by driver name.
//
// # Errors
//
// Lookups of missing records return ErrNotFound. Everything else is wrapped
// with the failing operation.
package store
