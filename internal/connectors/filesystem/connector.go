// Package filesystem scans, reads and watches local ingest sources.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure Scanner implements the interface.
var _ driven.SourceScanner = (*Scanner)(nil)

// Scanner enumerates regular files under a root.
type Scanner struct{}

// New creates a filesystem scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks root and returns its files sorted by relative path.
// Hidden files and directories are skipped unless opts.FollowHidden.
// Unreadable entries are reported as skips, never as errors.
func (s *Scanner) Scan(ctx context.Context, root string, opts domain.ReadOptions) (*driven.ScanResult, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, root)
	}
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	result := &driven.ScanResult{}

	if !info.IsDir() {
		abs, _ := filepath.Abs(root)
		result.Entries = append(result.Entries, entryFor(abs, filepath.Base(root), info))
		return result, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			if rel == "." {
				return walkErr
			}
			result.Skips = append(result.Skips, domain.Skip{Path: rel, Reason: skipReason(walkErr)})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if rel == "." {
			return nil
		}

		if !opts.FollowHidden && isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			result.Skips = append(result.Skips, domain.Skip{Path: rel, Reason: skipReason(err)})
			return nil
		}

		abs, _ := filepath.Abs(path)
		result.Entries = append(result.Entries, entryFor(abs, rel, fi))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Path < result.Entries[j].Path
	})
	return result, nil
}

// ReadFile returns the bytes of an entry.
func (s *Scanner) ReadFile(ctx context.Context, entry driven.SourceEntry) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(entry.AbsPath)
}

func entryFor(abs, rel string, fi fs.FileInfo) driven.SourceEntry {
	return driven.SourceEntry{
		Path:    rel,
		AbsPath: abs,
		Name:    fi.Name(),
		Ext:     strings.ToLower(filepath.Ext(fi.Name())),
		MIME:    detectMIMEType(fi.Name()),
		Size:    fi.Size(),
		MTime:   fi.ModTime(),
	}
}

func skipReason(err error) string {
	if errors.Is(err, fs.ErrPermission) {
		return "permission denied"
	}
	return err.Error()
}

// isHidden checks if any path component starts with a dot.
// "." and ".." are not considered hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
