package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// buildDOCX creates a minimal DOCX archive in memory.
func buildDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	add := func(name, body string) {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	add("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types/>`)
	if documentXML != "" {
		add(documentPart, documentXML)
	}
	if coreXML != "" {
		add(corePart, coreXML)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func body(inner string) string {
	return `<?xml version="1.0"?><w:document ` + wordNS + `><w:body>` + inner + `</w:body></w:document>`
}

func TestSupported(t *testing.T) {
	n := New()
	assert.Equal(t, []string{".docx"}, n.SupportedExtensions())
	assert.Len(t, n.SupportedMIMETypes(), 1)
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_InvalidZip(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "/a.docx", Content: []byte("not a zip file")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_ParagraphsRunsAndTables(t *testing.T) {
	xmlBody := body(`
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell A</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)
	core := `<?xml version="1.0"?><cp:coreProperties xmlns:cp="x" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Design Notes</dc:title></cp:coreProperties>`

	raw := &domain.RawDocument{
		URI:      "/docs/notes.docx",
		MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Content:  buildDOCX(t, xmlBody, core),
		Metadata: map[string]any{"k": "v"},
	}
	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Hello World\nSecond\ttabbed\nCell A", doc.Content)
	assert.Equal(t, "Design Notes", doc.Metadata["title"])
	assert.Equal(t, "docx", doc.Metadata["format"])
	assert.Equal(t, "v", doc.Metadata["k"])
}

func TestNormalise_TitleFallbackToFilename(t *testing.T) {
	raw := &domain.RawDocument{
		URI:     "/docs/my_meeting-notes.docx",
		Content: buildDOCX(t, body(`<w:p><w:r><w:t>x</w:t></w:r></w:p>`), ""),
	}
	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "my meeting notes", result.Document.Metadata["title"])
}

func TestNormalise_MissingDocumentPart(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "/e.docx", Content: buildDOCX(t, "", "")})
	require.NoError(t, err)
	assert.Empty(t, result.Document.Content)
}

func TestNormalise_MalformedXML(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "/b.docx", Content: buildDOCX(t, "<w:document><w:body>", "")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTrimLines(t *testing.T) {
	assert.Equal(t, "a\n\nb", trimLines("a  \n\n\n\nb\n"))
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
