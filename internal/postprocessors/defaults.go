package postprocessors

import (
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/postprocessors/chunker"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/postprocessors/whitespace"
)

// Processor names.
const (
	ChunkerName    = "chunker"
	WhitespaceName = "whitespace"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(ChunkerName, buildChunker)
	r.Register(WhitespaceName, func(map[string]any) (driven.PostProcessor, error) {
		return whitespace.New(), nil
	})
}

// NewChunkingPipeline builds the indexing pipeline: the document text is
// collapsed, cut into fixed-size windows, and the window edges trimmed.
func NewChunkingPipeline(chunkSize, overlap int) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	chunk, err := r.Build(ChunkerName, map[string]any{"chunk_size": chunkSize, "overlap": overlap})
	if err != nil {
		return nil, err
	}
	ws, err := r.Build(WhitespaceName, nil)
	if err != nil {
		return nil, err
	}
	return NewPipeline(ws, chunk, ws), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): runes per chunk (default: 1024)
//   - overlap (int): overlapping runes between chunks (default: 100)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
