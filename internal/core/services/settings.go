package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys, as named in the config file.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding_provider"
	keyEmbedModel      = "embedding_model_id"
	keyEmbedAPIBase    = "embedding_api_base"
	keyLLMProvider     = "llm_provider"
	keyLLMModel        = "llm_model_id"
	keyLLMAPIBase      = "llm_api_base"
	keyLLMAPIKey       = "llm_api_key"
	keyTemperature     = "temperature"
	keyHistoryLimit    = "history_limit"
	keyChunkSize       = "chunk_size"
	keyChunkOverlap    = "chunk_overlap"
	keyTopK            = "retrieval_top_k"
	keyEnableBM25      = "enable_bm25"
	keyEnableRerank    = "enable_rerank"
	keyRerankModel     = "rerank_model_id"
	keyRerankAPIBase   = "rerank_api_base"
	keyOCREnabled      = "ocr_enabled"
	keyMaxFileBytes    = "max_file_bytes"
	keyLLMTimeout      = "llm_timeout_seconds"
	keyMonitorInterval = "monitor_interval_seconds"
)

// setting binds a key to a field of domain.Config.
type setting struct {
	key    string
	secret bool
	get    func(c *domain.Config) string
	set    func(c *domain.Config, v string) error
}

func stringSetting(key string, field func(c *domain.Config) *string) setting {
	return setting{
		key: key,
		get: func(c *domain.Config) string { return *field(c) },
		set: func(c *domain.Config, v string) error {
			*field(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

func providerSetting(key string, field func(c *domain.Config) *domain.AIProvider) setting {
	return setting{
		key: key,
		get: func(c *domain.Config) string { return field(c).String() },
		set: func(c *domain.Config, v string) error {
			p := domain.AIProvider(strings.ToLower(strings.TrimSpace(v)))
			if !p.IsValid() {
				return fmt.Errorf("unknown provider %q", v)
			}
			*field(c) = p
			return nil
		},
	}
}

func intSetting(key string, field func(c *domain.Config) *int) setting {
	return setting{
		key: key,
		get: func(c *domain.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *domain.Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%q is not an integer", v)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolSetting(key string, field func(c *domain.Config) *bool) setting {
	return setting{
		key: key,
		get: func(c *domain.Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *domain.Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%q is not a boolean", v)
			}
			*field(c) = b
			return nil
		},
	}
}

// settings lists every key in display order.
var settings = []setting{
	providerSetting(keyEmbedProvider, func(c *domain.Config) *domain.AIProvider { return &c.EmbeddingProvider }),
	stringSetting(keyEmbedModel, func(c *domain.Config) *string { return &c.EmbeddingModelID }),
	stringSetting(keyEmbedAPIBase, func(c *domain.Config) *string { return &c.EmbeddingAPIBase }),
	providerSetting(keyLLMProvider, func(c *domain.Config) *domain.AIProvider { return &c.LLMProvider }),
	stringSetting(keyLLMModel, func(c *domain.Config) *string { return &c.LLMModelID }),
	stringSetting(keyLLMAPIBase, func(c *domain.Config) *string { return &c.LLMAPIBase }),
	func() setting {
		s := stringSetting(keyLLMAPIKey, func(c *domain.Config) *string { return &c.LLMAPIKey })
		s.secret = true
		return s
	}(),
	{
		key: keyTemperature,
		get: func(c *domain.Config) string { return strconv.FormatFloat(c.Temperature, 'g', -1, 64) },
		set: func(c *domain.Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", v)
			}
			c.Temperature = f
			return nil
		},
	},
	intSetting(keyHistoryLimit, func(c *domain.Config) *int { return &c.HistoryLimit }),
	intSetting(keyChunkSize, func(c *domain.Config) *int { return &c.ChunkSize }),
	intSetting(keyChunkOverlap, func(c *domain.Config) *int { return &c.ChunkOverlap }),
	intSetting(keyTopK, func(c *domain.Config) *int { return &c.RetrievalTopK }),
	boolSetting(keyEnableBM25, func(c *domain.Config) *bool { return &c.EnableBM25 }),
	boolSetting(keyEnableRerank, func(c *domain.Config) *bool { return &c.EnableRerank }),
	stringSetting(keyRerankModel, func(c *domain.Config) *string { return &c.RerankModelID }),
	stringSetting(keyRerankAPIBase, func(c *domain.Config) *string { return &c.RerankAPIBase }),
	boolSetting(keyOCREnabled, func(c *domain.Config) *bool { return &c.OCREnabled }),
	{
		key: keyMaxFileBytes,
		get: func(c *domain.Config) string { return strconv.FormatInt(c.MaxFileBytes, 10) },
		set: func(c *domain.Config, v string) error {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fmt.Errorf("%q is not an integer", v)
			}
			c.MaxFileBytes = n
			return nil
		},
	},
	intSetting(keyLLMTimeout, func(c *domain.Config) *int { return &c.LLMTimeoutSeconds }),
	intSetting(keyMonitorInterval, func(c *domain.Config) *int { return &c.MonitorIntervalSeconds }),
}

func lookupSetting(key string) (setting, error) {
	for _, s := range settings {
		if s.key == key {
			return s, nil
		}
	}
	return setting{}, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

// SettingsService reads and edits the typed configuration.
type SettingsService struct {
	mu    sync.RWMutex
	store driven.ConfigStore
	cfg   domain.Config
}

// NewSettingsService loads the configuration from store.
func NewSettingsService(store driven.ConfigStore) (*SettingsService, error) {
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", store.Path(), err)
	}
	return &SettingsService{store: store, cfg: cfg}, nil
}

// Get returns the current configuration.
func (s *SettingsService) Get() domain.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set parses value for key, validates the whole configuration and saves it.
// Switching the LLM or embedding provider without naming a model picks the
// provider's default model.
func (s *SettingsService) Set(key, value string) error {
	st, err := lookupSetting(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	if err := st.set(&next, value); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	applyProviderDefaults(key, s.cfg, &next)
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.cfg = next
	return nil
}

// applyProviderDefaults resets the model when a provider changes.
func applyProviderDefaults(key string, prev domain.Config, next *domain.Config) {
	switch key {
	case keyEmbedProvider:
		if next.EmbeddingProvider != prev.EmbeddingProvider {
			if m, ok := domain.DefaultEmbeddingModels()[next.EmbeddingProvider]; ok {
				next.EmbeddingModelID = m
			}
		}
	case keyLLMProvider:
		if next.LLMProvider != prev.LLMProvider {
			if m, ok := domain.DefaultLLMModels()[next.LLMProvider]; ok {
				next.LLMModelID = m
			}
		}
	}
}

// Keys returns every configuration key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settings))
	for i, st := range settings {
		keys[i] = st.key
	}
	return keys
}

// Value returns the string form of a key.
func (s *SettingsService) Value(key string) (string, error) {
	st, err := lookupSetting(key)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return st.get(&s.cfg), nil
}

// Secret reports whether a key holds a credential that should be masked.
func (s *SettingsService) Secret(key string) bool {
	st, err := lookupSetting(key)
	return err == nil && st.secret
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.store.Path()
}
