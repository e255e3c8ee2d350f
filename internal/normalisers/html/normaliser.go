// Package html normalises HTML pages into readable text.
//
// Script, style and other non-content elements are removed, block elements
// become line breaks and blank lines are collapsed.
package html

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const (
	dropSelector  = "script, style, noscript, svg, iframe, template, head"
	blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6, pre, blockquote, section, article, header, footer, table"
)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Higher than plaintext
}

// Normalise converts an HTML document to plain text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(plaintext.DecodeUTF8(raw.Content)))
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		title = titleFromPath(raw.URI)
	}

	page.Find(dropSelector).Remove()
	page.Find("br").ReplaceWithHtml("\n")
	page.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	doc := domain.Document{
		Content:  cleanLines(page.Text()),
		MIME:     raw.MIMEType,
		Metadata: copyMetadata(raw.Metadata),
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["title"] = title
	doc.Metadata["format"] = "html"

	return &driven.NormaliseResult{Document: doc}, nil
}

// cleanLines trims each line, collapses inner whitespace and drops blank
// lines.
func cleanLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func titleFromPath(uri string) string {
	filename := filepath.Base(uri)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
