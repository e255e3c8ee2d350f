package ai

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// Ensure Services implements the interface.
var _ driving.ProviderChecker = (*Services)(nil)

// CheckProviders pings the embedder and the LLM. An LLM that could not be
// created reports the creation error.
func (s *Services) CheckProviders(ctx context.Context) []domain.ProviderCheck {
	emb := domain.ProviderCheck{Role: "embedding"}
	if s.Embedder == nil {
		emb.Err = domain.ErrEmbeddingUnavailable
	} else {
		emb.Model = s.Embedder.ModelName()
		emb.Err = Ping(ctx, s.Embedder)
		emb.OK = emb.Err == nil
	}

	llm := domain.ProviderCheck{Role: "llm"}
	if s.LLM == nil {
		llm.Err = s.LLMErr
		if llm.Err == nil {
			llm.Err = domain.ErrLLMUnavailable
		}
	} else {
		llm.Model = s.LLM.ModelName()
		llm.Err = Ping(ctx, s.LLM)
		llm.OK = llm.Err == nil
	}
	return []domain.ProviderCheck{emb, llm}
}
