package driven

import "context"

// Reranker scores query/passage pairs with a cross-encoder.
type Reranker interface {
	// Rerank returns one relevance score per text, in input order.
	// Higher scores are more relevant.
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)

	// ModelName returns the name of the re-ranking model.
	ModelName() string

	// Close releases resources.
	Close() error
}
