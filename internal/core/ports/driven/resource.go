package driven

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// ResourceSampler measures current system load.
type ResourceSampler interface {
	// Sample returns CPU, memory and (when present) GPU utilisation.
	Sample(ctx context.Context) (domain.ResourceSample, error)

	// Device reports the compute device embeddings run on.
	Device() domain.Device
}
