// Package delimited normalises CSV and TSV files. Each record becomes one
// line of "header: value" pairs so that a chunk carries its column names.
package delimited

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles comma and tab separated files.
type Normaliser struct{}

// New creates a new delimited text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".csv", ".tsv"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/csv", "text/tab-separated-values"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise parses the records and renders them as text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	r := csv.NewReader(strings.NewReader(plaintext.DecodeUTF8(raw.Content)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if strings.EqualFold(filepath.Ext(raw.URI), ".tsv") || raw.MIMEType == "text/tab-separated-values" {
		r.Comma = '\t'
	}

	var (
		rows     [][]string
		warnings []string
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				warnings = append(warnings, fmt.Sprintf("line %d: %v", perr.Line, perr.Err))
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		rows = append(rows, rec)
	}

	doc := domain.Document{
		Content:  FormatRows(rows),
		MIME:     raw.MIMEType,
		Metadata: copyMetadata(raw.Metadata),
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["title"] = extractTitle(raw.URI)
	doc.Metadata["format"] = "csv"
	doc.Metadata["rows"] = max(len(rows)-1, 0)

	return &driven.NormaliseResult{Document: doc, Warnings: warnings}, nil
}

// FormatRows renders a table whose first row is the header. Data rows are
// written as "header: value" pairs joined by "; ". Empty cells are omitted
// and columns without a header are named by position.
func FormatRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header := rows[0]
	if len(rows) == 1 {
		return strings.Join(trimAll(header), " | ")
	}

	var b bytes.Buffer
	for _, row := range rows[1:] {
		var pairs []string
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			name := fmt.Sprintf("column %d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			pairs = append(pairs, name+": "+cell)
		}
		if len(pairs) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(pairs, "; "))
	}
	return b.String()
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
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
