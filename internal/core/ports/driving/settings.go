package driving

import "github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the current configuration.
	Get() domain.Config

	// Set updates a single key from its string form and persists it.
	Set(key, value string) error

	// Keys returns every configuration key in display order.
	Keys() []string

	// Value returns the string form of a key.
	Value(key string) (string, error)

	// Secret reports whether a key holds a credential that should be masked.
	Secret(key string) bool

	// Path returns the configuration file path.
	Path() string
}
