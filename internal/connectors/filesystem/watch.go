package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.SourceWatcher = (*Watcher)(nil)

var watchLog = logger.For("watch")

// Watcher reports file changes under a root using fsnotify.
// Directories created after Watch starts are added automatically.
type Watcher struct {
	root string
}

// NewWatcher creates a watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Watch emits changes until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, root string) (<-chan domain.SourceChange, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, root)
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	w.root = abs

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addTree(fw, abs); err != nil {
		_ = fw.Close()
		return nil, err
	}

	out := make(chan domain.SourceChange, 64)
	go func() {
		defer close(out)
		defer fw.Close() //nolint:errcheck // best effort on shutdown

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && !isHidden(w.rel(event.Name)) {
						if err := w.addTree(fw, event.Name); err != nil {
							watchLog.Warn("watch %s: %v", event.Name, err)
						}
					}
				}
				change := w.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case out <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				watchLog.Warn("watcher error: %v", err)
			}
		}
	}()

	return out, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable subtrees are not watched
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && isHidden(w.rel(path)) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// handleFsEvent converts an fsnotify event to a change.
// Directories, hidden files and chmod-only events produce nil.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *domain.SourceChange {
	rel := w.rel(event.Name)
	if isHidden(rel) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.SourceChange{Type: domain.ChangeDeleted, Path: rel}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		fi, err := os.Stat(event.Name)
		if err != nil || fi.IsDir() {
			return nil
		}
		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return &domain.SourceChange{Type: changeType, Path: rel}
	default:
		return nil
	}
}
