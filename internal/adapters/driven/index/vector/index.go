// Package vector is an in-memory cosine similarity index with brute-force
// search. Vectors are normalised on insert so search is a dot product.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index holds fixed-dimension vectors keyed by chunk ID.
type Index struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
	pos     map[string]int
}

// New creates an empty index for dim-sized vectors.
func New(dim int) *Index {
	return &Index{dim: dim, pos: make(map[string]int)}
}

// Dim returns the vector dimension of the index.
func (x *Index) Dim() int {
	return x.dim
}

// Add inserts or replaces the vector of a chunk.
func (x *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != x.dim {
		return fmt.Errorf("%w: vector of length %d, index expects %d", domain.ErrDimensionMismatch, len(embedding), x.dim)
	}
	v := normalise(embedding)

	x.mu.Lock()
	defer x.mu.Unlock()
	if i, ok := x.pos[chunkID]; ok {
		x.vectors[i] = v
		return nil
	}
	x.pos[chunkID] = len(x.ids)
	x.ids = append(x.ids, chunkID)
	x.vectors = append(x.vectors, v)
	return nil
}

// Delete removes a chunk. Unknown IDs are ignored.
func (x *Index) Delete(_ context.Context, chunkID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.pos[chunkID]
	if !ok {
		return nil
	}
	last := len(x.ids) - 1
	x.ids[i], x.vectors[i] = x.ids[last], x.vectors[last]
	x.pos[x.ids[i]] = i
	x.ids, x.vectors = x.ids[:last], x.vectors[:last]
	delete(x.pos, chunkID)
	return nil
}

// Search returns the k most similar chunks, best first. Equal scores keep
// index order.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query of length %d, index expects %d", domain.ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalise(query)

	x.mu.RLock()
	hits := make([]driven.VectorHit, len(x.ids))
	for i, v := range x.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				x.mu.RUnlock()
				return nil, err
			}
		}
		hits[i] = driven.VectorHit{ChunkID: x.ids[i], Similarity: dot(q, v)}
	}
	x.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Close drops the vectors.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids, x.vectors = nil, nil
	x.pos = make(map[string]int)
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalise returns a unit-length copy of v. The zero vector stays zero.
func normalise(v []float32) []float32 {
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
