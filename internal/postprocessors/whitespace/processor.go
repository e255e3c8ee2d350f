// Package whitespace normalises chunk text.
package whitespace

import (
	"context"
	"strings"
	"unicode"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// Processor collapses every run of whitespace into a single space and
// drops chunks that end up empty. Surviving chunks are renumbered so
// positions stay contiguous.
type Processor struct{}

// New creates a whitespace processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "whitespace"
}

// Process normalises the chunks produced by an earlier processor. Ahead
// of any chunker it collapses the document text instead.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if chunks == nil {
		CollapseDocument(doc)
		return nil, nil
	}
	out := chunks[:0]
	for _, c := range chunks {
		c.Content = Collapse(c.Content)
		if c.Content == "" {
			continue
		}
		c.Position = len(out)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Collapse trims s and replaces internal whitespace runs with one space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CollapseDocument collapses doc.Content like Collapse and moves page
// offsets to the matching runes of the new text.
func CollapseDocument(doc *domain.Document) {
	runes := []rune(doc.Content)
	pos := make([]int, len(runes)+1)

	var b strings.Builder
	b.Grow(len(doc.Content))
	n, pending := 0, false
	for i, r := range runes {
		pos[i] = n
		if unicode.IsSpace(r) {
			pending = n > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			n++
			pending = false
			pos[i] = n
		}
		b.WriteRune(r)
		n++
	}
	pos[len(runes)] = n

	if len(doc.PageOffsets) > 0 {
		offsets := make([]int, len(doc.PageOffsets))
		for i, off := range doc.PageOffsets {
			offsets[i] = pos[min(max(off, 0), len(runes))]
		}
		doc.PageOffsets = offsets
	}
	doc.Content = b.String()
}
