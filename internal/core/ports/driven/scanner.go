package driven

import (
	"context"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// SourceScanner enumerates and reads files under an ingest root.
type SourceScanner interface {
	// Scan walks root in lexicographic order. A root that is a single
	// file yields one entry. Returns domain.ErrSourceMissing when root
	// does not exist.
	Scan(ctx context.Context, root string, opts domain.ReadOptions) (*ScanResult, error)

	// ReadFile returns the bytes of an entry.
	ReadFile(ctx context.Context, entry SourceEntry) ([]byte, error)
}

// SourceEntry is one file found by a scan.
type SourceEntry struct {
	// Path is relative to the scan root, using forward slashes.
	Path    string
	AbsPath string
	Name    string
	Ext     string
	MIME    string
	Size    int64
	MTime   time.Time
}

// ScanResult holds scan output in lexicographic order.
type ScanResult struct {
	Entries []SourceEntry

	// Skips lists entries that could not be visited (e.g., permissions).
	Skips []domain.Skip
}

// SourceWatcher reports filesystem changes under a root.
type SourceWatcher interface {
	// Watch emits changes until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context, root string) (<-chan domain.SourceChange, error)
}
