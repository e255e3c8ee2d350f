// Package pdf normalises PDF files.
//
// Text is taken from the PDF text layer first. When that yields nothing the
// poppler pdftotext tool is tried, and when the document is still empty and
// OCR was requested the configured OCR service is used.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// ErrPDFToolNotFound indicates the pdftotext binary is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// ErrNoText indicates no text could be recovered from the document.
var ErrNoText = errors.New("pdf contains no extractable text")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner pipes nothing to the command and captures stdout.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var log = logger.For("pdf")

// Normaliser handles PDF documents.
type Normaliser struct {
	runner CommandRunner
	ocr    driven.OCRService
}

// Option configures the normaliser.
type Option func(*Normaliser)

// WithOCR sets the OCR service used for scanned documents.
func WithOCR(ocr driven.OCRService) Option {
	return func(n *Normaliser) {
		n.ocr = ocr
	}
}

// New creates a new PDF normaliser.
func New(opts ...Option) *Normaliser {
	n := &Normaliser{runner: execRunner{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewWithRunner creates a normaliser with a custom command runner.
func NewWithRunner(runner CommandRunner, opts ...Option) *Normaliser {
	n := New(opts...)
	n.runner = runner
	return n
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text from a PDF.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var warnings []string
	pages, err := readTextLayer(raw.Content)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("text layer: %v", err))
	}

	source := "text"
	if isBlank(pages) {
		out, cmdErr := n.runner.Run(ctx, "pdftotext", "-layout", raw.URI, "-")
		switch {
		case errors.Is(cmdErr, ErrPDFToolNotFound):
			log.Debug("%s: %s", raw.Path, InstallInstructions())
		case cmdErr != nil:
			warnings = append(warnings, fmt.Sprintf("pdftotext: %v", cmdErr))
		default:
			pages = splitPages(string(out))
			source = "pdftotext"
		}
	}

	if isBlank(pages) && raw.OCR && n.ocr != nil {
		text, ocrErr := n.ocr.ExtractText(ctx, raw.Content, ".pdf")
		if ocrErr != nil {
			return nil, fmt.Errorf("ocr: %w", ocrErr)
		}
		pages = splitPages(text)
		source = "ocr"
	}

	if isBlank(pages) {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return nil, ErrNoText
	}

	content, offsets := joinPages(pages)
	doc := domain.Document{
		Content:     content,
		MIME:        raw.MIMEType,
		PageOffsets: offsets,
		Metadata:    copyMetadata(raw.Metadata),
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["title"] = extractTitle(content, raw.URI)
	doc.Metadata["format"] = "pdf"
	doc.Metadata["pages"] = len(pages)
	doc.Metadata["extracted_by"] = source

	return &driven.NormaliseResult{Document: doc, Warnings: warnings}, nil
}

// readTextLayer returns the plain text of every page. The parser panics on
// some malformed files, so panics are turned into errors.
func readTextLayer(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, perr := page.GetPlainText(fonts)
		if perr != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// splitPages splits pdftotext output on form feeds.
func splitPages(text string) []string {
	parts := strings.Split(text, "\f")
	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		pages = append(pages, strings.TrimSpace(p))
	}
	for len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// joinPages concatenates pages and records the rune offset at which each
// page begins.
func joinPages(pages []string) (string, []int) {
	var b strings.Builder
	offsets := make([]int, 0, len(pages))
	runes := 0
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
			runes += 2
		}
		offsets = append(offsets, runes)
		b.WriteString(p)
		runes += utf8.RuneCountInString(p)
	}
	return b.String(), offsets
}

func isBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// InstallInstructions returns instructions for installing pdftotext.
func InstallInstructions() string {
	return "Scanned or image-only PDFs need pdftotext (poppler).\n" +
		"  macOS:  brew install poppler\n" +
		"  Ubuntu: apt install poppler-utils"
}

// extractTitle returns the first short non-empty line, else the filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\x00"))
		if line != "" && len(line) < 200 {
			return line
		}
	}

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
