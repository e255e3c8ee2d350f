package driven

import "github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"

// ConfigStore persists the typed application configuration.
type ConfigStore interface {
	// Load reads configuration from storage. A missing file yields
	// domain.DefaultConfig(). Unknown keys are an error.
	Load() (domain.Config, error)

	// Save persists the configuration.
	Save(cfg domain.Config) error

	// Path returns the configuration file path.
	Path() string
}
