package driving

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// ProviderChecker pings the configured embedding and language model
// providers.
type ProviderChecker interface {
	CheckProviders(ctx context.Context) []domain.ProviderCheck
}
