// Package xlsx normalises Excel workbooks. Each sheet is treated as a page
// and rendered with the same row format as CSV files.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/delimited"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles XLSX workbooks.
type Normaliser struct{}

// New creates a new XLSX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".xlsx"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise renders every sheet under a "Sheet: <name>" heading.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	book, err := excelize.OpenReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	defer book.Close()

	var (
		b        strings.Builder
		offsets  []int
		runes    int
		warnings []string
	)
	sheets := book.GetSheetList()
	for _, name := range sheets {
		rows, err := book.GetRows(name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("sheet %q: %v", name, err))
			continue
		}
		section := "Sheet: " + name
		if body := delimited.FormatRows(rows); body != "" {
			section += "\n" + body
		}
		if len(offsets) > 0 {
			b.WriteString("\n\n")
			runes += 2
		}
		offsets = append(offsets, runes)
		b.WriteString(section)
		runes += utf8.RuneCountInString(section)
	}

	doc := domain.Document{
		Content:     b.String(),
		MIME:        raw.MIMEType,
		PageOffsets: offsets,
		Metadata:    copyMetadata(raw.Metadata),
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["title"] = extractTitle(raw.URI)
	doc.Metadata["format"] = "xlsx"
	doc.Metadata["sheets"] = len(sheets)

	return &driven.NormaliseResult{Document: doc, Warnings: warnings}, nil
}

func extractTitle(uri string) string {
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
