// Package bm25 is an in-memory Okapi BM25 keyword index over chunk text.
package bm25

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

// Default BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type doc struct {
	id     string
	seq    int
	length int
	tf     map[string]int
}

// Engine scores chunks against keyword queries.
type Engine struct {
	mu       sync.RWMutex
	k1, b    float64
	docs     map[string]*doc
	postings map[string]map[string]int
	totalLen int
	nextSeq  int
}

// Option configures the engine.
type Option func(*Engine)

// WithParams overrides k1 and b.
func WithParams(k1, b float64) Option {
	return func(e *Engine) {
		e.k1, e.b = k1, b
	}
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		k1:       DefaultK1,
		b:        DefaultB,
		docs:     make(map[string]*doc),
		postings: make(map[string]map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index adds a chunk, replacing any earlier text with the same ID.
func (e *Engine) Index(_ context.Context, chunk domain.Chunk) error {
	terms := Tokenize(chunk.Content)

	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.nextSeq
	if old, ok := e.docs[chunk.ID]; ok {
		seq = old.seq
		e.remove(old)
	} else {
		e.nextSeq++
	}

	d := &doc{id: chunk.ID, seq: seq, length: len(terms), tf: make(map[string]int)}
	for _, t := range terms {
		d.tf[t]++
	}
	for t, n := range d.tf {
		p := e.postings[t]
		if p == nil {
			p = make(map[string]int)
			e.postings[t] = p
		}
		p[d.id] = n
	}
	e.docs[d.id] = d
	e.totalLen += d.length
	return nil
}

// Delete removes a chunk. Unknown IDs are ignored.
func (e *Engine) Delete(_ context.Context, chunkID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.docs[chunkID]; ok {
		e.remove(d)
	}
	return nil
}

func (e *Engine) remove(d *doc) {
	for t := range d.tf {
		p := e.postings[t]
		delete(p, d.id)
		if len(p) == 0 {
			delete(e.postings, t)
		}
	}
	e.totalLen -= d.length
	delete(e.docs, d.id)
}

// Search returns up to limit chunks with a positive score, best first.
// Equal scores are ordered by indexing order.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	if limit <= 0 {
		return nil, nil
	}
	terms := uniqueTerms(Tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(e.totalLen) / float64(n)

	scores := make(map[string]float64)
	for _, t := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := e.postings[t]
		if len(p) == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(len(p))+0.5)/(float64(len(p))+0.5))
		for id, tf := range p {
			dl := float64(e.docs[id].length)
			f := float64(tf)
			norm := f + e.k1*(1-e.b+e.b*dl/avgLen)
			scores[id] += idf * f * (e.k1 + 1) / norm
		}
	}

	hits := make([]driven.SearchHit, 0, len(scores))
	for id, s := range scores {
		hits = append(hits, driven.SearchHit{ChunkID: id, Score: s})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return e.docs[hits[i].ChunkID].seq < e.docs[hits[j].ChunkID].seq
	})
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// Close drops the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = make(map[string]*doc)
	e.postings = make(map[string]map[string]int)
	e.totalLen = 0
	return nil
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
