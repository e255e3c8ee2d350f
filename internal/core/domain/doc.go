// Package domain defines the core business entities for ragpro.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Corpus: a named, self-contained index (descriptor, manifest, ledger)
//   - Document: a file read from an ingest source
//   - Chunk: the retrieval unit, stored with its vector
//   - Message: a chat turn persisted in the per-corpus history
//   - ProgressEvent: a build pipeline notification
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
