package driving

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// ChatService answers questions grounded in one corpus.
type ChatService interface {
	// Mount opens a corpus for retrieval, verifying the active embedder
	// produces vectors of the corpus dimension.
	Mount(ctx context.Context, corpus string) error

	// Unmount releases a mounted corpus.
	Unmount(corpus string)

	// Chat streams one answer. The channel carries token and stage events
	// followed by exactly one done event, then is closed. A caller that
	// stops reading early must cancel ctx; the done event may then be
	// dropped.
	Chat(ctx context.Context, corpus string, req domain.ChatRequest) (<-chan domain.ChatEvent, error)

	// History returns the stored messages of a corpus.
	History(ctx context.Context, corpus string) ([]domain.Message, error)

	// ClearHistory removes the stored messages of a corpus.
	ClearHistory(ctx context.Context, corpus string) error
}
