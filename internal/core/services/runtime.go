package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Runtime carries the active models and configuration into a service.
// It is built once per command and passed explicitly.
type Runtime struct {
	Config   domain.Config
	Embedder driven.EmbeddingService

	// LLM may be nil for commands that never generate.
	LLM driven.LLMService

	// Reranker may be nil; re-ranking is then skipped.
	Reranker driven.Reranker
}

// sampleText is embedded to learn an embedder's output size.
const sampleText = "dimension sample"

// embedderDim returns the vector size of emb, embedding a sample string
// when the model's size is not known up front.
func embedderDim(ctx context.Context, emb driven.EmbeddingService) (int, error) {
	if emb == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if d := emb.Dimensions(); d > 0 {
		return d, nil
	}
	vec, err := emb.Embed(ctx, sampleText)
	if err != nil {
		return 0, providerError("embedding sample text", err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: %s returned an empty vector", domain.ErrProviderFailure, emb.ModelName())
	}
	return len(vec), nil
}

// providerError maps a raw provider error onto the domain error kinds.
// Errors that already carry a kind pass through unchanged.
func providerError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderTimeout, err)
	case domain.Kind(err) == "Internal":
		return fmt.Errorf("%s: %w: %v", op, domain.ErrProviderFailure, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// CorpusLocks serialises writers per corpus and counts commits so that
// mounted engines can notice they are stale.
type CorpusLocks struct {
	mu    sync.Mutex
	locks map[string]*corpusLock
}

type corpusLock struct {
	rw  sync.RWMutex
	gen atomic.Uint64
}

// NewCorpusLocks creates an empty lock table.
func NewCorpusLocks() *CorpusLocks {
	return &CorpusLocks{locks: make(map[string]*corpusLock)}
}

func (l *CorpusLocks) get(name string) *corpusLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[name]
	if !ok {
		lk = &corpusLock{}
		l.locks[name] = lk
	}
	return lk
}

// tryWrite takes the write lock without waiting.
func (l *CorpusLocks) tryWrite(name string) (func(), error) {
	lk := l.get(name)
	if !lk.rw.TryLock() {
		return nil, fmt.Errorf("%w: %s", domain.ErrCorpusBusy, name)
	}
	return lk.rw.Unlock, nil
}

// read takes the shared lock, waiting for a running writer until ctx ends.
func (l *CorpusLocks) read(ctx context.Context, name string) (func(), error) {
	lk := l.get(name)
	for !lk.rw.TryRLock() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	return lk.rw.RUnlock, nil
}

// Generation returns the commit counter of a corpus.
func (l *CorpusLocks) Generation(name string) uint64 {
	return l.get(name).gen.Load()
}

// bump records a commit, delete or rename of a corpus.
func (l *CorpusLocks) bump(name string) {
	l.get(name).gen.Add(1)
}
