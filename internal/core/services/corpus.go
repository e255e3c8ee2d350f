package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure CorpusService implements the interface.
var _ driving.CorpusService = (*CorpusService)(nil)

var corpusLog = logger.For("corpus")

// CorpusService manages corpora and keeps their chat histories in step.
type CorpusService struct {
	store    driven.CorpusStore
	history  driven.MessageLog
	embedder driven.EmbeddingService
	locks    *CorpusLocks
}

// NewCorpusService creates a corpus service. history may be nil.
func NewCorpusService(store driven.CorpusStore, history driven.MessageLog, embedder driven.EmbeddingService, locks *CorpusLocks) *CorpusService {
	if locks == nil {
		locks = NewCorpusLocks()
	}
	return &CorpusService{store: store, history: history, embedder: embedder, locks: locks}
}

// List returns every corpus, most recently modified first.
func (s *CorpusService) List(ctx context.Context) ([]domain.CorpusStats, error) {
	return s.store.List(ctx)
}

// Stats summarises one corpus.
func (s *CorpusService) Stats(ctx context.Context, name string) (*domain.CorpusStats, error) {
	if err := domain.ValidateCorpusName(name); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, name)
}

// Manifest returns the file registry of a corpus.
func (s *CorpusService) Manifest(ctx context.Context, name string) (*domain.Manifest, error) {
	if err := domain.ValidateCorpusName(name); err != nil {
		return nil, err
	}
	snap, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer snap.Close() //nolint:errcheck // read-only snapshot
	m := snap.Manifest
	return &m, nil
}

// Create initialises an empty corpus described by the active embedder.
func (s *CorpusService) Create(ctx context.Context, name string) error {
	if err := domain.ValidateCorpusName(name); err != nil {
		return err
	}
	unlock, err := s.locks.tryWrite(name)
	if err != nil {
		return err
	}
	defer unlock()

	if s.store.Exists(name) {
		return fmt.Errorf("corpus %s: %w", name, domain.ErrAlreadyExists)
	}
	dim, err := embedderDim(ctx, s.embedder)
	if err != nil {
		return err
	}
	desc := domain.Descriptor{
		EmbeddingModelID: s.embedder.ModelName(),
		VectorDim:        dim,
		CreatedAt:        time.Now(),
	}
	if err := s.store.Create(ctx, name, desc); err != nil {
		return err
	}
	s.locks.bump(name)
	corpusLog.Info("created %s (%s, dim %d)", name, desc.EmbeddingModelID, dim)
	return nil
}

// Delete removes a corpus and its chat history.
func (s *CorpusService) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateCorpusName(name); err != nil {
		return err
	}
	unlock, err := s.locks.tryWrite(name)
	if err != nil {
		return err
	}
	defer unlock()

	if !s.store.Exists(name) {
		return fmt.Errorf("%s: %w", name, domain.ErrMissingCorpus)
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.locks.bump(name)

	if s.history != nil {
		if err := s.history.Clear(ctx, name); err != nil {
			corpusLog.Warn("clearing history of %s: %v", name, err)
		}
	}
	corpusLog.Info("deleted %s", name)
	return nil
}

// Rename moves a corpus and its chat history to a new name.
func (s *CorpusService) Rename(ctx context.Context, oldName, newName string) error {
	for _, n := range []string{oldName, newName} {
		if err := domain.ValidateCorpusName(n); err != nil {
			return err
		}
	}
	if oldName == newName {
		return nil
	}

	unlockOld, err := s.locks.tryWrite(oldName)
	if err != nil {
		return err
	}
	defer unlockOld()
	unlockNew, err := s.locks.tryWrite(newName)
	if err != nil {
		return err
	}
	defer unlockNew()

	if !s.store.Exists(oldName) {
		return fmt.Errorf("%s: %w", oldName, domain.ErrMissingCorpus)
	}
	if s.store.Exists(newName) {
		return fmt.Errorf("corpus %s: %w", newName, domain.ErrAlreadyExists)
	}
	if err := s.store.Rename(ctx, oldName, newName); err != nil {
		return err
	}
	s.locks.bump(oldName)
	s.locks.bump(newName)

	if s.history != nil {
		if err := s.history.Rename(ctx, oldName, newName); err != nil {
			corpusLog.Warn("moving history of %s: %v", oldName, err)
		}
	}
	corpusLog.Info("renamed %s to %s", oldName, newName)
	return nil
}
