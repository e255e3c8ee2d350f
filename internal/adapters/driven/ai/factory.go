// Package ai builds the embedding, LLM, rerank and OCR adapters selected
// by configuration, wrapped in a circuit breaker and a rate limiter.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	localembed "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/llm/ollama"
	openaillm "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/llm/openai"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/ocr/tesseract"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/rerank/httpx"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

var log = logger.For("ai")

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Environment variables consulted when no API key is configured.
const (
	EnvLLMAPIKey       = "RAGPRO_LLM_API_KEY"
	EnvEmbeddingAPIKey = "RAGPRO_EMBEDDING_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// Services holds the model adapters for one configuration.
type Services struct {
	Embedder driven.EmbeddingService

	// LLM is nil when the LLM provider could not be created; Err explains why.
	LLM    driven.LLMService
	LLMErr error

	// Reranker is nil unless enable_rerank is set.
	Reranker driven.Reranker

	// OCR is nil unless ocr_enabled is set.
	OCR driven.OCRService
}

// Close releases all adapters.
func (s *Services) Close() error {
	var errs []error
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.LLM != nil {
		errs = append(errs, s.LLM.Close())
	}
	if s.Reranker != nil {
		errs = append(errs, s.Reranker.Close())
	}
	return errors.Join(errs...)
}

// NewServices creates every adapter the configuration selects. Only an
// embedder failure is fatal: retrieval cannot work without one, while
// building and listing work without an LLM.
func NewServices(cfg domain.Config) (*Services, error) {
	emb, err := CreateEmbeddingService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	s := &Services{Embedder: emb}

	if llm, err := CreateLLMService(cfg); err != nil {
		s.LLMErr = fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
		log.Warn("%v", s.LLMErr)
	} else {
		s.LLM = llm
	}
	if cfg.EnableRerank {
		s.Reranker = CreateReranker(cfg)
	}
	if cfg.OCREnabled {
		s.OCR = tesseract.New()
	}
	return s, nil
}

// CreateEmbeddingService creates the configured embedder. Remote providers
// are guarded.
func CreateEmbeddingService(cfg domain.Config) (driven.EmbeddingService, error) {
	switch cfg.EmbeddingProvider {
	case domain.AIProviderLocal:
		return localembed.New(cfg.EmbeddingModelID)

	case domain.AIProviderOllama:
		svc := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.EmbeddingAPIBase,
			Model:   cfg.EmbeddingModelID,
		})
		return GuardEmbedder(svc, NewGuard("embedding/ollama", DefaultGuardConfig())), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  EmbeddingAPIKey(cfg),
			BaseURL: cfg.EmbeddingAPIBase,
			Model:   cfg.EmbeddingModelID,
		})
		if err != nil {
			return nil, err
		}
		return GuardEmbedder(svc, NewGuard("embedding/openai", DefaultGuardConfig())), nil

	case domain.AIProviderAnthropic:
		return nil, errors.New("anthropic does not support embeddings, use local, ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}

// CreateLLMService creates the configured, guarded LLM.
func CreateLLMService(cfg domain.Config) (driven.LLMService, error) {
	var svc driven.LLMService
	var err error
	switch cfg.LLMProvider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: cfg.LLMAPIBase,
			Model:   cfg.LLMModelID,
			Timeout: cfg.LLMTimeout(),
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.Config{
			APIKey:  LLMAPIKey(cfg),
			BaseURL: cfg.LLMAPIBase,
			Model:   cfg.LLMModelID,
			Timeout: cfg.LLMTimeout(),
		})

	case domain.AIProviderAnthropic:
		svc, err = anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  LLMAPIKey(cfg),
			BaseURL: cfg.LLMAPIBase,
			Model:   cfg.LLMModelID,
			Timeout: cfg.LLMTimeout(),
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return GuardLLM(svc, NewGuard("llm/"+cfg.LLMProvider.String(), DefaultGuardConfig())), nil
}

// CreateReranker creates the guarded HTTP reranker.
func CreateReranker(cfg domain.Config) driven.Reranker {
	r := httpx.New(httpx.Config{BaseURL: cfg.RerankAPIBase, Model: cfg.RerankModelID})
	return GuardReranker(r, NewGuard("rerank", DefaultGuardConfig()))
}

// LLMAPIKey returns the configured key, else the first environment
// variable that is set for the provider.
func LLMAPIKey(cfg domain.Config) string {
	if cfg.LLMAPIKey != "" {
		return cfg.LLMAPIKey
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		return v
	}
	switch cfg.LLMProvider {
	case domain.AIProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	case domain.AIProviderAnthropic:
		return os.Getenv(EnvAnthropicAPIKey)
	default:
		return ""
	}
}

// EmbeddingAPIKey returns the key for an OpenAI embedder. The LLM key is
// reused when the LLM also talks to OpenAI.
func EmbeddingAPIKey(cfg domain.Config) string {
	if v := os.Getenv(EnvEmbeddingAPIKey); v != "" {
		return v
	}
	if cfg.LLMProvider == domain.AIProviderOpenAI && cfg.LLMAPIKey != "" {
		return cfg.LLMAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// Ping checks a service is reachable within pingTimeout.
func Ping(ctx context.Context, p interface{ Ping(context.Context) error }) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}
