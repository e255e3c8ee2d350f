// Package chunker splits document text into overlapping windows.
package chunker

import (
	"context"
	"unicode"

	"github.com/google/uuid"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = domain.DefaultOverlap

// boundaryWindow is the fraction of a chunk searched backwards for a
// whitespace break before cutting mid-word.
const boundaryWindow = 5

// Processor splits document content into rune windows of chunkSize with
// overlap runes shared between neighbours.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	newID     func() string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithIDGenerator replaces the UUID generator. Used by tests.
func WithIDGenerator(fn func() string) Option {
	return func(p *Processor) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		newID:     func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks. Input chunks are
// ignored. Each chunk records its rune offset and the page it starts on.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		return nil, nil
	}

	runes := []rune(doc.Content)
	total := len(runes)
	chunks := make([]domain.Chunk, 0, total/(p.chunkSize-p.overlap)+1)

	for start := 0; start < total; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+p.chunkSize, total)
		if end < total {
			end = p.softEnd(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			ID:       p.newID(),
			FilePath: doc.Path,
			Content:  string(runes[start:end]),
			Position: len(chunks),
			Offset:   start,
			Page:     doc.PageAt(start),
			Metadata: make(map[string]any),
		})

		if end == total {
			break
		}
		next := end - p.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// softEnd moves end back to just after the last whitespace within the tail
// of the window, keeping words intact when possible.
func (p *Processor) softEnd(runes []rune, start, end int) int {
	limit := end - (end-start)/boundaryWindow
	if limit <= start+p.overlap {
		limit = start + p.overlap + 1
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
