package domain

import (
	"errors"
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings, LLM or reranking.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the built-in feature-hashing embedder.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI or any OpenAI-compatible API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Local hashing embedder (offline)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderLocal, AIProviderOllama, AIProviderOpenAI}
}

// AllLLMProviders returns providers that support chat completion.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hash-512",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		"bge-m3":            1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// Config is the typed application configuration.
// Unknown keys are rejected when a config file is loaded.
type Config struct {
	EmbeddingProvider AIProvider `json:"embedding_provider" toml:"embedding_provider"`
	EmbeddingModelID  string     `json:"embedding_model_id" toml:"embedding_model_id"`
	EmbeddingAPIBase  string     `json:"embedding_api_base" toml:"embedding_api_base"`

	LLMProvider AIProvider `json:"llm_provider" toml:"llm_provider"`
	LLMModelID  string     `json:"llm_model_id" toml:"llm_model_id"`
	LLMAPIBase  string     `json:"llm_api_base" toml:"llm_api_base"`
	LLMAPIKey   string     `json:"llm_api_key" toml:"llm_api_key"`

	Temperature  float64 `json:"temperature" toml:"temperature"`
	HistoryLimit int     `json:"history_limit" toml:"history_limit"`

	ChunkSize    int `json:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" toml:"chunk_overlap"`

	RetrievalTopK int    `json:"retrieval_top_k" toml:"retrieval_top_k"`
	EnableBM25    bool   `json:"enable_bm25" toml:"enable_bm25"`
	EnableRerank  bool   `json:"enable_rerank" toml:"enable_rerank"`
	RerankModelID string `json:"rerank_model_id" toml:"rerank_model_id"`
	RerankAPIBase string `json:"rerank_api_base" toml:"rerank_api_base"`

	OCREnabled   bool  `json:"ocr_enabled" toml:"ocr_enabled"`
	MaxFileBytes int64 `json:"max_file_bytes" toml:"max_file_bytes"`

	LLMTimeoutSeconds      int `json:"llm_timeout_seconds" toml:"llm_timeout_seconds"`
	MonitorIntervalSeconds int `json:"monitor_interval_seconds" toml:"monitor_interval_seconds"`
}

// Retrieval defaults.
const (
	DefaultTopK       = 5
	RerankCandidates  = 10
	RerankKeep        = 3
	DefaultHistory    = 10
	DefaultChunkSize  = 1024
	DefaultOverlap    = 100
	DefaultLLMTimeout = 120
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		EmbeddingProvider:      AIProviderLocal,
		EmbeddingModelID:       "hash-512",
		LLMProvider:            AIProviderOllama,
		LLMModelID:             "llama3.2",
		Temperature:            0.1,
		HistoryLimit:           DefaultHistory,
		ChunkSize:              DefaultChunkSize,
		ChunkOverlap:           DefaultOverlap,
		RetrievalTopK:          DefaultTopK,
		RerankModelID:          "BAAI/bge-reranker-base",
		RerankAPIBase:          "http://localhost:8080",
		MaxFileBytes:           DefaultMaxFileBytes,
		LLMTimeoutSeconds:      DefaultLLMTimeout,
		MonitorIntervalSeconds: 3,
	}
}

// Validate checks value ranges and provider names.
func (c Config) Validate() error {
	var errs []error
	if !c.EmbeddingProvider.IsValid() || c.EmbeddingProvider == AIProviderAnthropic {
		errs = append(errs, fmt.Errorf("embedding_provider %q is not supported", c.EmbeddingProvider))
	}
	if !c.LLMProvider.IsValid() || c.LLMProvider == AIProviderLocal {
		errs = append(errs, fmt.Errorf("llm_provider %q is not supported", c.LLMProvider))
	}
	if c.EmbeddingModelID == "" {
		errs = append(errs, errors.New("embedding_model_id is required"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap))
	}
	if c.RetrievalTopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval_top_k must be positive, got %d", c.RetrievalTopK))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("history_limit must not be negative, got %d", c.HistoryLimit))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature))
	}
	if c.MaxFileBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_file_bytes must be positive, got %d", c.MaxFileBytes))
	}
	if c.LLMTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("llm_timeout_seconds must be positive, got %d", c.LLMTimeoutSeconds))
	}
	if c.MonitorIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("monitor_interval_seconds must be positive, got %d", c.MonitorIntervalSeconds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// LLMTimeout returns the per-request provider timeout.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// MonitorInterval returns the resource sampling cadence.
func (c Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalSeconds) * time.Second
}

// ReadOptions derives reader options from configuration.
func (c Config) ReadOptions() ReadOptions {
	return ReadOptions{OCR: c.OCREnabled, MaxFileBytes: c.MaxFileBytes}
}

// ProviderCheck reports whether one configured model provider answers.
type ProviderCheck struct {
	Role  string // "embedding" or "llm"
	Model string
	OK    bool
	Err   error
}
