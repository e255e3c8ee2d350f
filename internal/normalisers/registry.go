package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/delimited"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/docx"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/html"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/jsondoc"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/markdown"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/pdf"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/plaintext"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/pptx"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers/xlsx"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches documents to normalisers.
type Registry struct {
	mu     sync.RWMutex
	byExt  map[string][]driven.Normaliser
	byMIME map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:  make(map[string][]driven.Normaliser),
		byMIME: make(map[string][]driven.Normaliser),
	}
}

// NewDefaultRegistry returns a registry holding every built-in normaliser.
// ocr may be nil, in which case scanned PDFs are skipped.
func NewDefaultRegistry(ocr driven.OCRService) *Registry {
	r := NewRegistry()
	var pdfOpts []pdf.Option
	if ocr != nil {
		pdfOpts = append(pdfOpts, pdf.WithOCR(ocr))
	}
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(delimited.New())
	r.Register(jsondoc.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pptx.New())
	r.Register(xlsx.New())
	r.Register(pdf.New(pdfOpts...))
	return r
}

// Register adds a normaliser under each of its extensions and MIME types.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range n.SupportedExtensions() {
		key := strings.ToLower(ext)
		r.byExt[key] = insertByPriority(r.byExt[key], n)
	}
	for _, mime := range n.SupportedMIMETypes() {
		r.byMIME[mime] = insertByPriority(r.byMIME[mime], n)
	}
}

func insertByPriority(list []driven.Normaliser, n driven.Normaliser) []driven.Normaliser {
	list = append(list, n)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
	return list
}

// Supports reports whether a normaliser handles the extension.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byExt[strings.ToLower(ext)]) > 0
}

// SupportedExtensions returns all registered extensions in sorted order.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Normalise picks a normaliser by extension, then by MIME type.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.lookup(raw)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, displayType(raw))
	}
	return n.Normalise(ctx, raw)
}

func (r *Registry) lookup(raw *domain.RawDocument) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := raw.Path
	if name == "" {
		name = raw.URI
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if list := r.byExt[ext]; len(list) > 0 {
			return list[0]
		}
		return nil
	}
	if list := r.byMIME[raw.MIMEType]; len(list) > 0 {
		return list[0]
	}
	return nil
}

func displayType(raw *domain.RawDocument) string {
	name := raw.Path
	if name == "" {
		name = raw.URI
	}
	if ext := filepath.Ext(name); ext != "" {
		return ext
	}
	if raw.MIMEType != "" {
		return raw.MIMEType
	}
	return "unknown"
}
