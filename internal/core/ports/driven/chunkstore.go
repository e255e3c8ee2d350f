package driven

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// ChunkStore persists chunk text, metadata and vectors.
type ChunkStore interface {
	// ReplaceFile removes every chunk owned by path and inserts chunks in
	// a single transaction.
	ReplaceFile(ctx context.Context, path string, chunks []domain.Chunk) error

	// DeleteFile removes every chunk owned by path.
	DeleteFile(ctx context.Context, path string) error

	// GetChunks returns chunks by ID, keyed by ID. Missing IDs are absent.
	GetChunks(ctx context.Context, ids []string) (map[string]domain.Chunk, error)

	// ChunkIDs returns the IDs owned by path in position order.
	ChunkIDs(ctx context.Context, path string) ([]string, error)

	// Iterate calls fn for every chunk, vectors included, in insertion order.
	Iterate(ctx context.Context, fn func(domain.Chunk) error) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// VectorDim returns the length of one stored vector, or 0 when empty.
	VectorDim(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
