package memory

import (
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore holds a configuration in memory.
type ConfigStore struct {
	mu    sync.RWMutex
	cfg   domain.Config
	saves int
}

// NewConfigStore creates a store holding cfg.
func NewConfigStore(cfg domain.Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

// Load returns the stored configuration.
func (s *ConfigStore) Load() (domain.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

// Save validates and stores cfg.
func (s *ConfigStore) Save(cfg domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.saves++
	return nil
}

// Path returns a placeholder location.
func (s *ConfigStore) Path() string {
	return ":memory:"
}

// Saves returns how many times Save succeeded.
func (s *ConfigStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
