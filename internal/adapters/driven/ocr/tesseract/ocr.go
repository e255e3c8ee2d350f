// Package tesseract recognises text by shelling out to the tesseract CLI.
// PDFs are first rasterised with poppler's pdftoppm.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.OCRService = (*Service)(nil)

// ErrToolNotFound indicates tesseract or pdftoppm is not installed.
var ErrToolNotFound = errors.New("ocr tool not found in PATH")

// DefaultLanguages is passed to tesseract -l.
const DefaultLanguages = "eng+chi_sim"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
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

// Service runs OCR through external tools.
type Service struct {
	runner    CommandRunner
	languages string
	dpi       int
}

// Option configures the service.
type Option func(*Service)

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithLanguages sets the tesseract language list, e.g. "eng+deu".
func WithLanguages(langs string) Option {
	return func(s *Service) {
		s.languages = langs
	}
}

// New creates an OCR service.
func New(opts ...Option) *Service {
	s := &Service{runner: execRunner{}, languages: DefaultLanguages, dpi: 300}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractText recognises the text of an image or a scanned PDF. PDF pages
// are separated by form feeds.
func (s *Service) ExtractText(ctx context.Context, data []byte, ext string) (string, error) {
	dir, err := os.MkdirTemp("", "ragpro-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if ext != ".pdf" {
		return s.recognise(ctx, input)
	}

	prefix := filepath.Join(dir, "page")
	if _, err := s.runner.Run(ctx, "pdftoppm", "-r", fmt.Sprint(s.dpi), "-png", input, prefix); err != nil {
		return "", err
	}
	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: pdftoppm produced no pages", domain.ErrInvalidInput)
	}
	sortPages(pages)

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		text, err := s.recognise(ctx, page)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\f"), nil
}

func (s *Service) recognise(ctx context.Context, path string) (string, error) {
	out, err := s.runner.Run(ctx, "tesseract", path, "stdout", "-l", s.languages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// sortPages orders pdftoppm output numerically. Its zero padding depends
// on the page count, so compare by length first.
func sortPages(pages []string) {
	sort.Slice(pages, func(i, j int) bool {
		if len(pages[i]) != len(pages[j]) {
			return len(pages[i]) < len(pages[j])
		}
		return pages[i] < pages[j]
	})
}
