package driven

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// MessageLog persists chat history per corpus, independent of rebuilds.
type MessageLog interface {
	// Load returns the stored messages, oldest first.
	Load(ctx context.Context, corpus string) ([]domain.Message, error)

	// Append adds messages atomically.
	Append(ctx context.Context, corpus string, msgs ...domain.Message) error

	// Clear removes the history of a corpus.
	Clear(ctx context.Context, corpus string) error

	// Rename moves a history to a new corpus name.
	Rename(ctx context.Context, oldName, newName string) error
}
