package driven

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// CorpusStore manages corpus directories and their JSON artifacts.
// Implementations do no locking; callers serialise writers per corpus.
type CorpusStore interface {
	// Root returns the directory holding all corpora.
	Root() string

	// Exists reports whether a committed corpus directory exists.
	Exists(name string) bool

	// List returns stats for every corpus, most recently modified first.
	List(ctx context.Context) ([]domain.CorpusStats, error)

	// Stats summarises one corpus.
	Stats(ctx context.Context, name string) (*domain.CorpusStats, error)

	// Create initialises an empty corpus with the given descriptor.
	Create(ctx context.Context, name string, desc domain.Descriptor) error

	// Delete removes a corpus and everything in it.
	Delete(ctx context.Context, name string) error

	// Rename moves a corpus to a new name.
	Rename(ctx context.Context, oldName, newName string) error

	// Open loads a committed corpus for reading. When the descriptor file
	// is missing its dimension is inferred from a stored vector.
	// The caller must Close the snapshot.
	Open(ctx context.Context, name string) (*CorpusSnapshot, error)

	// Stage prepares a private working copy for a build. With carryOver
	// the committed stores and artifacts are copied into it.
	Stage(ctx context.Context, name string, carryOver bool) (Staging, error)
}

// CorpusSnapshot is an opened, committed corpus.
type CorpusSnapshot struct {
	Name       string
	Descriptor domain.Descriptor
	Manifest   domain.Manifest
	Ledger     domain.FingerprintLedger
	Chunks     ChunkStore

	// DescriptorInferred is true when the descriptor file was missing.
	DescriptorInferred bool
}

// Close releases the chunk store.
func (s *CorpusSnapshot) Close() error {
	if s == nil || s.Chunks == nil {
		return nil
	}
	return s.Chunks.Close()
}

// Staging is the private working directory of one build.
// Nothing is visible to readers until Commit.
type Staging interface {
	// Dir returns the staging directory.
	Dir() string

	// Chunks returns the staged chunk store.
	Chunks() ChunkStore

	// Previous returns the artifacts copied from the committed corpus.
	// Both are zero values for a fresh staging area.
	Previous() (domain.Manifest, domain.FingerprintLedger)

	WriteDescriptor(desc domain.Descriptor) error
	WriteManifest(m domain.Manifest) error
	WriteLedger(l domain.FingerprintLedger) error

	// Commit atomically replaces the committed corpus with the staging area.
	Commit(ctx context.Context) error

	// Discard removes the staging area. It is safe after Commit.
	Discard() error
}
