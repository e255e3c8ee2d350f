package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/connectors/filesystem"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers"
)

func newTestReader() *Reader {
	return NewReader(filesystem.New(), normalisers.NewDefaultRegistry(nil))
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestReader_ScanFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.txt":       "bravo",
		"a.md":        "# alpha",
		"sub/c.txt":   "charlie",
		"image.bin":   "\x00\x01",
		".hidden.txt": "secret",
	})

	entries, report, err := newTestReader().Scan(context.Background(), dir, domain.DefaultReadOptions())
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"a.md", "b.txt", "sub/c.txt"}, paths)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "image.bin", report.Skips[0].Path)
	assert.Empty(t, report.Warnings)
}

func TestReader_MaxFileBytesBoundary(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"exact.txt": strings.Repeat("x", 16),
		"over.txt":  strings.Repeat("x", 17),
	})

	opts := domain.ReadOptions{MaxFileBytes: 16}
	entries, report, err := newTestReader().Scan(context.Background(), dir, opts)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "exact.txt", entries[0].Path)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, "over.txt", report.Skips[0].Path)
	assert.Contains(t, report.Skips[0].Reason, "larger than 16 bytes")
}

func TestReader_EmptyDirectoryWarns(t *testing.T) {
	entries, report, err := newTestReader().Scan(context.Background(), t.TempDir(), domain.DefaultReadOptions())
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], domain.ErrNoReadableFiles.Error())
}

func TestReader_MissingSource(t *testing.T) {
	_, _, err := newTestReader().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), domain.DefaultReadOptions())
	assert.ErrorIs(t, err, domain.ErrSourceMissing)
}

func TestReader_ReadHashesAndRepairsUTF8(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt": "Paris is the capital of France.",
		"b.txt": "bad \xff byte",
	})

	docs, report, err := newTestReader().Read(context.Background(), dir, domain.DefaultReadOptions())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, report.Success)

	a := docs[0]
	assert.Equal(t, "a.txt", a.Path)
	assert.Equal(t, "a.txt", a.Name)
	assert.Equal(t, ".txt", a.Ext)
	assert.Equal(t, "7ee7038e498a82bc5645f5b024b0d39c", a.Hash)
	assert.Equal(t, "Paris is the capital of France.", a.Content)

	assert.Equal(t, "bad � byte", docs[1].Content)
}

func TestReader_SameContentSameHash(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"one/notes.txt": "identical",
		"two/notes.txt": "identical",
	})

	docs, _, err := newTestReader().Read(context.Background(), dir, domain.DefaultReadOptions())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, docs[0].Hash, docs[1].Hash)
	assert.NotEqual(t, docs[0].Path, docs[1].Path)
}

func TestReader_ParseFailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"broken.docx": "not a zip archive",
		"ok.txt":      "fine",
	})

	docs, report, err := newTestReader().Read(context.Background(), dir, domain.DefaultReadOptions())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ok.txt", docs[0].Path)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "broken.docx", report.Skips[0].Path)
}
