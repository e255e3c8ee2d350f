// Package sqlite stores the chunks of one corpus.
//
// Chunk text and metadata live in docstore.db. Vectors live in
// vector_store.db, which is attached to the same connection so that a file's
// chunks and vectors are replaced in one transaction.
//
// The adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO.
//
// # Schema
//
// The schema is managed through numbered migrations embedded from the
// migrations/ directory. Applied versions are recorded in
// schema_migrations.
//
// # Connections
//
// The store holds a single connection because ATTACH is per connection.
// Callers must not use the store from inside an Iterate callback.
package sqlite
