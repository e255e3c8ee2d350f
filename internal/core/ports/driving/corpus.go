package driving

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// CorpusService manages corpora.
type CorpusService interface {
	// List returns corpora ordered by most recent modification first.
	List(ctx context.Context) ([]domain.CorpusStats, error)

	// Stats summarises one corpus.
	Stats(ctx context.Context, name string) (*domain.CorpusStats, error)

	// Manifest returns the file registry of a corpus.
	Manifest(ctx context.Context, name string) (*domain.Manifest, error)

	// Create initialises an empty corpus for the active embedder.
	Create(ctx context.Context, name string) error

	// Delete removes a corpus and its chat history.
	Delete(ctx context.Context, name string) error

	// Rename moves a corpus and its chat history.
	Rename(ctx context.Context, oldName, newName string) error
}
