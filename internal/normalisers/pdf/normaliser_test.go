package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	calls  int
}

func (m *mockRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	m.calls++
	return m.output, m.err
}

type mockOCR struct {
	text string
	err  error
}

func (m *mockOCR) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	return m.text, m.err
}

func notAPDF() *domain.RawDocument {
	return &domain.RawDocument{
		Path:     "scan.pdf",
		URI:      "/docs/scan.pdf",
		MIMEType: "application/pdf",
		Content:  []byte("definitely not a pdf"),
	}
}

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, execRunner{}, normaliser.runner)
	assert.Nil(t, normaliser.ocr)
}

func TestSupported(t *testing.T) {
	normaliser := New()
	assert.Equal(t, []string{"application/pdf"}, normaliser.SupportedMIMETypes())
	assert.Equal(t, []string{".pdf"}, normaliser.SupportedExtensions())
	assert.Equal(t, 50, normaliser.Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_PdftotextFallback(t *testing.T) {
	runner := &mockRunner{output: []byte("Quarterly Report\nline two\fPage two text\f")}
	normaliser := NewWithRunner(runner)

	result, err := normaliser.Normalise(context.Background(), notAPDF())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)

	doc := result.Document
	assert.Equal(t, "Quarterly Report\nline two\n\nPage two text", doc.Content)
	assert.Equal(t, []int{0, 27}, doc.PageOffsets)
	assert.Equal(t, 2, doc.PageAt(30))
	assert.Equal(t, "Quarterly Report", doc.Metadata["title"])
	assert.Equal(t, "pdftotext", doc.Metadata["extracted_by"])
	assert.NotEmpty(t, result.Warnings, "text layer failure is reported")
}

func TestNormalise_OCRWhenRequested(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}
	normaliser := NewWithRunner(runner, WithOCR(&mockOCR{text: "scanned words"}))

	raw := notAPDF()
	raw.OCR = true
	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "scanned words", result.Document.Content)
	assert.Equal(t, "ocr", result.Document.Metadata["extracted_by"])
}

func TestNormalise_OCRNotRequested(t *testing.T) {
	normaliser := NewWithRunner(&mockRunner{err: ErrPDFToolNotFound}, WithOCR(&mockOCR{text: "unused"}))

	_, err := normaliser.Normalise(context.Background(), notAPDF())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_OCRFailure(t *testing.T) {
	normaliser := NewWithRunner(&mockRunner{err: ErrPDFToolNotFound}, WithOCR(&mockOCR{err: errors.New("tesseract crashed")}))

	raw := notAPDF()
	raw.OCR = true
	_, err := normaliser.Normalise(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract crashed")
}

func TestSplitPages(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitPages("a\fb\f\f"))
	assert.Equal(t, []string{""}, splitPages(""))
}

func TestJoinPages_UnicodeOffsets(t *testing.T) {
	content, offsets := joinPages([]string{"日本語", "x"})
	assert.Equal(t, "日本語\n\nx", content)
	assert.Equal(t, []int{0, 5}, offsets)
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		uri      string
		expected string
	}{
		{"first line as title", "Document Title\n\nSome content here.", "/doc.pdf", "Document Title"},
		{"skip empty lines", "\n\n\nActual Title\nContent", "/doc.pdf", "Actual Title"},
		{"fallback to filename", "", "/path/to/my_document.pdf", "my document"},
		{"skip very long first line", string(make([]byte, 250)) + "\nShort Title\nContent", "/doc.pdf", "Short Title"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractTitle(tc.content, tc.uri))
		})
	}
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}

func TestCopyMetadata(t *testing.T) {
	assert.Nil(t, copyMetadata(nil))
	src := map[string]any{"key1": "value1", "key2": 42}
	dst := copyMetadata(src)
	assert.Equal(t, src, dst)
	dst["key1"] = "changed"
	assert.Equal(t, "value1", src["key1"])
}
