package driving

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// Scheduler monitors system resources and adapts ingest capacity.
type Scheduler interface {
	// Start samples resources periodically.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops monitoring.
	Stop() error

	// Status returns the current throttle state and pool sizes.
	Status() domain.SchedulerStatus
}
