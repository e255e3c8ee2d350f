package services

import (
	"context"
	"errors"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.SourceWatchService = (*WatchService)(nil)

var watchLog = logger.For("watch")

// DefaultDebounce is how long a source must stay quiet before a rebuild.
const DefaultDebounce = 2 * time.Second

// WatchService keeps a corpus in step with its source directory.
type WatchService struct {
	watcher  driven.SourceWatcher
	builder  driving.IndexBuilder
	debounce time.Duration

	// OnBuild, when set, receives the outcome of every rebuild.
	OnBuild func(*domain.BuildResult, error)
}

// NewWatchService creates a watch service. A non-positive debounce uses
// DefaultDebounce.
func NewWatchService(watcher driven.SourceWatcher, builder driving.IndexBuilder, debounce time.Duration) *WatchService {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &WatchService{watcher: watcher, builder: builder, debounce: debounce}
}

// Watch runs an APPEND build once, then again after each burst of
// changes. Build errors are logged and never end the watch.
func (w *WatchService) Watch(ctx context.Context, corpus, source string) error {
	if err := domain.ValidateCorpusName(corpus); err != nil {
		return err
	}
	changes, err := w.watcher.Watch(ctx, source)
	if err != nil {
		return err
	}

	w.rebuild(ctx, corpus, source)

	var timer *time.Timer
	var fire <-chan time.Time
	pending := 0
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			watchLog.Debug("%s %s", change.Type, change.Path)
			pending++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			watchLog.Info("%d changes under %s, rebuilding %s", pending, source, corpus)
			pending = 0
			fire = nil
			w.rebuild(ctx, corpus, source)
		}
	}
}

func (w *WatchService) rebuild(ctx context.Context, corpus, source string) {
	res, err := w.builder.Build(ctx, domain.BuildRequest{Corpus: corpus, Source: source, Mode: domain.BuildAppend})
	switch {
	case err == nil:
		watchLog.Info("%s: +%d ~%d -%d", corpus, res.Added, res.Modified, res.Removed)
	case errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil:
		return
	default:
		watchLog.Warn("%s: rebuild failed: %v", corpus, err)
	}
	if w.OnBuild != nil {
		w.OnBuild(res, err)
	}
}
