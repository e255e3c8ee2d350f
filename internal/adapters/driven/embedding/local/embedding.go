// Package local provides an offline embedding service based on feature
// hashing. It needs no model download and is deterministic, which makes it
// the default embedder and the one used in tests.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the model name used when none is configured.
const DefaultModel = "hash-512"

const modelPrefix = "hash-"

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// EmbeddingService maps text to a fixed number of hashed term buckets.
type EmbeddingService struct {
	model string
	dim   int
}

// New creates a hashing embedder. The model name has the form "hash-<dim>".
func New(model string) (*EmbeddingService, error) {
	if model == "" {
		model = DefaultModel
	}
	dim, err := ParseDimensions(model)
	if err != nil {
		return nil, err
	}
	return &EmbeddingService{model: model, dim: dim}, nil
}

// ParseDimensions extracts the vector size from a "hash-<dim>" model name.
func ParseDimensions(model string) (int, error) {
	if !strings.HasPrefix(model, modelPrefix) {
		return 0, fmt.Errorf("%w: local model %q must be named hash-<dim>", domain.ErrInvalidInput, model)
	}
	dim, err := strconv.Atoi(strings.TrimPrefix(model, modelPrefix))
	if err != nil {
		return 0, fmt.Errorf("%w: local model %q must be named hash-<dim>", domain.ErrInvalidInput, model)
	}
	if dim < 8 || dim > 8192 {
		return 0, fmt.Errorf("%w: local model %q needs a dimension between 8 and 8192", domain.ErrInvalidInput, model)
	}
	return dim, nil
}

// Embed returns the L2-normalised hashed term vector of text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, s.dim)
	for _, term := range terms(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		idx := int(sum % uint64(s.dim))
		// The top bit picks a sign so collisions tend to cancel.
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, s.dim)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dim
}

// ModelName returns the model name.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}

// terms returns lower-cased words plus a bigram per adjacent word pair.
// Han runes count as single words.
func terms(text string) []string {
	var words []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if !containsHan(w) {
			words = append(words, w)
			continue
		}
		for _, r := range w {
			words = append(words, string(r))
		}
	}
	out := make([]string, 0, 2*len(words))
	out = append(out, words...)
	for i := 1; i < len(words); i++ {
		out = append(out, words[i-1]+" "+words[i])
	}
	return out
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
