package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Artifact file names inside a corpus directory.
const (
	DescriptorFile   = "descriptor.json"
	ManifestFile     = "manifest.json"
	FingerprintsFile = "fingerprints.json"
	DocstoreFile     = "docstore.db"
	VectorStoreFile  = "vector_store.db"
)

var corpusNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateCorpusName checks that name is safe to use as a directory name.
func ValidateCorpusName(name string) error {
	if name == "." || name == ".." || !corpusNamePattern.MatchString(name) {
		return fmt.Errorf("%w: corpus name %q must match %s", ErrInvalidInput, name, corpusNamePattern)
	}
	return nil
}

// Descriptor is the authoritative record of the embedding model a corpus
// was built with.
type Descriptor struct {
	EmbeddingModelID string    `json:"embedding_model_id"`
	VectorDim        int       `json:"vector_dim"`
	CreatedAt        time.Time `json:"created_at"`
}

// Compatible reports whether an embedder producing dim-sized vectors can
// query this corpus.
func (d Descriptor) Compatible(dim int) bool {
	return d.VectorDim == dim
}

// FileRecord is one entry of the manifest.
type FileRecord struct {
	// Path is relative to the ingest root, using forward slashes.
	Path string `json:"path"`

	// Name is the base name of the file.
	Name string `json:"name"`

	Size        int64     `json:"size"`
	MIME        string    `json:"mime"`
	Ext         string    `json:"ext"`
	AddedAt     time.Time `json:"added_at"`
	ContentHash string    `json:"content_hash"`
	MTime       time.Time `json:"mtime"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	// ChunkIDs lists owned chunks in source order.
	ChunkIDs []string `json:"chunk_ids"`
}

// Manifest is the human-readable file registry of a corpus.
type Manifest struct {
	Files        []FileRecord `json:"files"`
	EmbedModelID string       `json:"embed_model_id"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ChunkCount returns the total number of chunks owned by all records.
func (m *Manifest) ChunkCount() int {
	n := 0
	for _, f := range m.Files {
		n += len(f.ChunkIDs)
	}
	return n
}

// Lookup finds the record for a relative path.
func (m *Manifest) Lookup(path string) (FileRecord, bool) {
	for _, f := range m.Files {
		if f.Path == path {
			return f, true
		}
	}
	return FileRecord{}, false
}

// Fingerprint is a fingerprint ledger entry used for change detection.
type Fingerprint struct {
	Hash          string    `json:"hash"`
	MTime         time.Time `json:"mtime"`
	Size          int64     `json:"size"`
	LastProcessed time.Time `json:"last_processed"`
}

// Matches reports whether the file is unchanged since it was fingerprinted.
func (f Fingerprint) Matches(size int64, mtime time.Time, hash string) bool {
	return f.Size == size && f.MTime.Equal(mtime) && f.Hash == hash
}

// FingerprintLedger maps relative paths to fingerprints.
type FingerprintLedger map[string]Fingerprint

// CorpusStats summarises a corpus on disk.
type CorpusStats struct {
	Name             string    `json:"name"`
	FileCount        int       `json:"file_count"`
	ChunkCount       int       `json:"chunk_count"`
	BytesOnDisk      int64     `json:"bytes_on_disk"`
	CreatedAt        time.Time `json:"created_at"`
	ModifiedAt       time.Time `json:"modified_at"`
	EmbeddingModelID string    `json:"embedding_model_id"`
	VectorDim        int       `json:"vector_dim"`
}
