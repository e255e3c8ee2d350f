package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxFileBytes is the largest file the reader accepts.
const DefaultMaxFileBytes int64 = 100 << 20

// BuildMode selects how a build treats an existing corpus.
type BuildMode string

// Build modes.
const (
	// BuildNew discards any existing index.
	BuildNew BuildMode = "NEW"

	// BuildAppend reuses unchanged files from the existing index.
	BuildAppend BuildMode = "APPEND"
)

// ParseBuildMode accepts "new"/"append" in any case.
func ParseBuildMode(s string) (BuildMode, error) {
	switch BuildMode(strings.ToUpper(s)) {
	case BuildNew:
		return BuildNew, nil
	case BuildAppend:
		return BuildAppend, nil
	default:
		return "", fmt.Errorf("%w: build mode %q", ErrInvalidInput, s)
	}
}

// ReadOptions configures the document reader.
type ReadOptions struct {
	OCR          bool
	FollowHidden bool
	MaxFileBytes int64
}

// DefaultReadOptions returns reader defaults.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{MaxFileBytes: DefaultMaxFileBytes}
}

// Skip records why a file was not ingested.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ReadReport accumulates reader outcomes.
type ReadReport struct {
	Success  int      `json:"success"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Skips    []Skip   `json:"skips,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// AddSkip records a skipped file.
func (r *ReadReport) AddSkip(path, reason string) {
	r.Skipped++
	r.Skips = append(r.Skips, Skip{Path: path, Reason: reason})
}

// AddFailure records a file that could not be parsed.
func (r *ReadReport) AddFailure(path, reason string) {
	r.Failed++
	r.Skips = append(r.Skips, Skip{Path: path, Reason: reason})
}

// BuildOptions overrides configuration for a single build.
// Zero values fall back to configuration.
type BuildOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Read         ReadOptions
}

// BuildRequest asks the index builder to (re)build a corpus.
type BuildRequest struct {
	Corpus string
	Source string
	Mode   BuildMode

	// Confirmed must be true for a NEW build over an existing corpus.
	Confirmed bool

	Options BuildOptions
}

// BuildResult reports the outcome of a build.
type BuildResult struct {
	Corpus     string        `json:"corpus"`
	Success    bool          `json:"success"`
	Mode       BuildMode     `json:"mode"`
	FileCount  int           `json:"file_count"`
	ChunkCount int           `json:"chunk_count"`
	Added      int           `json:"added"`
	Modified   int           `json:"modified"`
	Unchanged  int           `json:"unchanged"`
	Removed    int           `json:"removed"`
	Kept       int           `json:"kept,omitempty"`
	Duration   time.Duration `json:"duration"`
	Report     ReadReport    `json:"report"`
	Warnings   []string      `json:"warnings,omitempty"`
	Err        error         `json:"-"`
}
