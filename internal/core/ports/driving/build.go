package driving

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// IndexBuilder ingests a source into a corpus.
type IndexBuilder interface {
	// Build runs the six-step pipeline. Only one build per corpus runs at
	// a time; a second one fails with domain.ErrCorpusBusy. Cancelling
	// ctx aborts the build and leaves the committed corpus untouched.
	Build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error)
}

// ProgressFeed delivers progress events to observers.
type ProgressFeed interface {
	// Subscribe returns a buffered event channel and a cancel function.
	// Slow subscribers miss events rather than stall producers.
	Subscribe(buffer int) (<-chan domain.ProgressEvent, func())
}

// SourceWatchService rebuilds a corpus when its source changes.
type SourceWatchService interface {
	// Watch blocks, running APPEND builds on change, until ctx is cancelled.
	Watch(ctx context.Context, corpus, source string) error
}
