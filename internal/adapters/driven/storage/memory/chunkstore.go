// Package memory provides in-memory implementations of storage ports for
// tests and ephemeral use.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	mu     sync.RWMutex
	order  []string
	chunks map[string]domain.Chunk
	closed bool
}

// NewChunkStore creates an empty in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[string]domain.Chunk)}
}

// ReplaceFile removes every chunk owned by path and inserts chunks.
// Duplicate IDs leave the store unchanged.
func (s *ChunkStore) ReplaceFile(_ context.Context, path string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if existing, ok := s.chunks[c.ID]; (ok && existing.FilePath != path) || seen[c.ID] {
			return fmt.Errorf("%w: chunk %s", domain.ErrAlreadyExists, c.ID)
		}
		seen[c.ID] = true
	}

	s.deleteLocked(path)
	for _, c := range chunks {
		c.FilePath = path
		s.chunks[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	return nil
}

// DeleteFile removes every chunk owned by path.
func (s *ChunkStore) DeleteFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(path)
	return nil
}

func (s *ChunkStore) deleteLocked(path string) {
	kept := s.order[:0]
	for _, id := range s.order {
		if s.chunks[id].FilePath == path {
			delete(s.chunks, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// GetChunks returns chunks by ID.
func (s *ChunkStore) GetChunks(_ context.Context, ids []string) (map[string]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Chunk, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// ChunkIDs returns the IDs owned by path in insertion order.
func (s *ChunkStore) ChunkIDs(_ context.Context, path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, id := range s.order {
		if s.chunks[id].FilePath == path {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Iterate calls fn for every chunk in insertion order.
func (s *ChunkStore) Iterate(ctx context.Context, fn func(domain.Chunk) error) error {
	s.mu.RLock()
	snapshot := make([]domain.Chunk, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.chunks[id])
	}
	s.mu.RUnlock()

	for _, c := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// VectorDim returns the length of the first stored vector.
func (s *ChunkStore) VectorDim(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if n := len(s.chunks[id].Embedding); n > 0 {
			return n, nil
		}
	}
	return 0, nil
}

// Close marks the store closed.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ChunkStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
