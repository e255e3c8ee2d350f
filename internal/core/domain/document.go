package domain

import "time"

// Document is a file read from an ingest source.
// It is the canonical representation after normalisation.
type Document struct {
	// Path is relative to the ingest root, using forward slashes.
	Path string

	// AbsPath is the location on disk.
	AbsPath string

	// Name is the base name of the file.
	Name string

	// Ext is the lower-cased extension including the dot.
	Ext string

	// MIME is the detected content type.
	MIME string

	Size  int64
	MTime time.Time

	// Hash is the MD5 hex digest of the file bytes.
	Hash string

	// Content is the full text after normalisation.
	Content string

	// PageOffsets holds the rune offset where each page starts, for
	// paginated formats. Empty when unknown.
	PageOffsets []int

	// Metadata contains normaliser-specific key-value pairs.
	Metadata map[string]any
}

// PageAt returns the 1-based page containing the rune offset, or 0 when
// the document has no page information.
func (d *Document) PageAt(offset int) int {
	page := 0
	for i, start := range d.PageOffsets {
		if start > offset {
			break
		}
		page = i + 1
	}
	return page
}

// Record builds the manifest entry for the document.
func (d *Document) Record(now time.Time, chunkIDs []string) FileRecord {
	return FileRecord{
		Path:        d.Path,
		Name:        d.Name,
		Size:        d.Size,
		MIME:        d.MIME,
		Ext:         d.Ext,
		AddedAt:     now,
		ContentHash: d.Hash,
		MTime:       d.MTime,
		LastSeenAt:  now,
		ChunkIDs:    chunkIDs,
	}
}

// Chunk represents a retrievable unit within a document.
type Chunk struct {
	// ID is generated once when the chunk is created.
	ID string

	// FilePath is the owning file record's relative path.
	FilePath string

	// Content is the whitespace-normalised text.
	Content string

	// Position is the ordinal position within the file.
	Position int

	// Offset is the rune offset of the chunk within the document.
	Offset int

	// Page is the 1-based page number, 0 when unknown.
	Page int

	// EmbeddingModelID names the model that produced Embedding.
	EmbeddingModelID string

	// Embedding is the vector representation.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// RetrievedChunk is the single shape every retriever returns.
type RetrievedChunk struct {
	ChunkID  string
	FilePath string
	FileName string
	Content  string
	Position int
	Page     int

	// Score is retriever-specific: cosine similarity, BM25, fused RRF
	// or cross-encoder relevance.
	Score float64
}
