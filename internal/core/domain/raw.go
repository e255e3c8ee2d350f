package domain

// RawDocument represents the bytes of one source file before normalisation.
// The bytes are read once and shared by hashing and parsing.
type RawDocument struct {
	// Path is relative to the ingest root.
	Path string

	// URI is the absolute location on disk.
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// OCR requests text recognition when a file has no text layer.
	OCR bool

	// Metadata contains reader-specific key-value pairs.
	Metadata map[string]any
}

// ChangeType represents the type of source file change.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns the change name.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// SourceChange is a filesystem change event reported by a watcher.
type SourceChange struct {
	Type ChangeType
	Path string
}

// FileChange classifies a file during an APPEND build.
type FileChange string

// File classifications.
const (
	FileNew       FileChange = "new"
	FileModified  FileChange = "modified"
	FileUnchanged FileChange = "unchanged"
	FileRemoved   FileChange = "removed"
)
