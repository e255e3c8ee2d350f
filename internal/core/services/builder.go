package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/postprocessors"
)

// Ensure IndexBuilder implements the interface.
var _ driving.IndexBuilder = (*IndexBuilder)(nil)

var buildLog = logger.For("builder")

// Builder defaults.
const (
	defaultAdmitWait     = 30 * time.Second
	defaultThrottleSleep = 250 * time.Millisecond
	embedAttempts        = 2
)

// BuilderOption configures an IndexBuilder.
type BuilderOption func(*IndexBuilder)

// WithScheduler consults a scheduler for admission, batch size and pools.
func WithScheduler(s *Scheduler) BuilderOption {
	return func(b *IndexBuilder) {
		b.scheduler = s
	}
}

// WithBuildProgress publishes build events on a bus.
func WithBuildProgress(bus *ProgressBus) BuilderOption {
	return func(b *IndexBuilder) {
		b.bus = bus
	}
}

// WithAdmitWait bounds how long a build waits for pressure to drop.
func WithAdmitWait(d time.Duration) BuilderOption {
	return func(b *IndexBuilder) {
		b.admitWait = d
	}
}

// WithThrottleSleep sets the pause inserted before batches while throttled.
func WithThrottleSleep(d time.Duration) BuilderOption {
	return func(b *IndexBuilder) {
		b.throttleSleep = d
	}
}

// IndexBuilder runs the six-step ingest pipeline into a staging area and
// commits it in one swap.
type IndexBuilder struct {
	store    driven.CorpusStore
	reader   *Reader
	embedder driven.EmbeddingService
	cfg      domain.Config
	locks    *CorpusLocks

	scheduler     *Scheduler
	bus           *ProgressBus
	admitWait     time.Duration
	throttleSleep time.Duration
	now           func() time.Time
}

// NewIndexBuilder creates a builder for the runtime's embedder and
// configuration.
func NewIndexBuilder(store driven.CorpusStore, reader *Reader, rt Runtime, locks *CorpusLocks, opts ...BuilderOption) *IndexBuilder {
	b := &IndexBuilder{
		store:         store,
		reader:        reader,
		embedder:      rt.Embedder,
		cfg:           rt.Config,
		locks:         locks,
		admitWait:     defaultAdmitWait,
		throttleSleep: defaultThrottleSleep,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.locks == nil {
		b.locks = NewCorpusLocks()
	}
	return b
}

// fileWork is the per-file state carried through the steps.
type fileWork struct {
	entry  driven.SourceEntry
	doc    *domain.Document
	hash   string
	change domain.FileChange
	report domain.ReadReport
	record domain.FileRecord
	chunks []domain.Chunk
	ok     bool

	// touched marks unchanged content under a new mtime.
	touched bool
	// kept marks a known file whose read failed; its prior record stays.
	kept bool
}

// buildRun holds the state of one build.
type buildRun struct {
	*IndexBuilder
	req     domain.BuildRequest
	opts    domain.BuildOptions
	ev      emitter
	res     *domain.BuildResult
	staging driven.Staging
	dim     int
	created time.Time
	started time.Time

	entries []driven.SourceEntry
	work    []*fileWork
	prev    domain.Manifest
	ledger  domain.FingerprintLedger
	removed []string
}

// Build runs the pipeline. The returned result is never nil; on failure
// its Err is set and the committed corpus is unchanged.
func (b *IndexBuilder) Build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	run := &buildRun{
		IndexBuilder: b,
		req:          req,
		opts:         b.resolveOptions(req.Options),
		ev:           emitter{bus: b.bus, component: "builder", corpus: req.Corpus},
		res:          &domain.BuildResult{Corpus: req.Corpus, Mode: req.Mode},
		started:      b.now(),
	}

	err := run.execute(ctx)
	run.res.Duration = b.now().Sub(run.started)
	if run.staging != nil {
		if derr := run.staging.Discard(); derr != nil {
			buildLog.Warn("%s: removing staging area: %v", req.Corpus, derr)
		}
	}
	if err != nil {
		run.fail(ctx, err)
		return run.res, run.res.Err
	}
	run.res.Success = true
	buildLog.Info("%s: %d files, %d chunks in %s", req.Corpus, run.res.FileCount, run.res.ChunkCount, run.res.Duration)
	return run.res, nil
}

func (b *IndexBuilder) resolveOptions(o domain.BuildOptions) domain.BuildOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = b.cfg.ChunkSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = domain.DefaultChunkSize
	}
	if o.ChunkOverlap <= 0 {
		o.ChunkOverlap = b.cfg.ChunkOverlap
	}
	if o.Read.MaxFileBytes <= 0 {
		o.Read.MaxFileBytes = b.cfg.MaxFileBytes
	}
	if !o.Read.OCR {
		o.Read.OCR = b.cfg.OCREnabled
	}
	return o
}

func (r *buildRun) fail(ctx context.Context, err error) {
	if ctx.Err() != nil && !errors.Is(err, domain.ErrCancelled) {
		err = fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	r.res.Err = err
	stage := currentStage(r)
	if errors.Is(err, domain.ErrCancelled) {
		buildLog.Info("%s: cancelled during %s", r.req.Corpus, stage)
		r.ev.emit(stage, domain.PhaseCancelled, "build cancelled", nil)
		return
	}
	buildLog.Error("%s: %v", r.req.Corpus, err)
	r.ev.emit(stage, domain.PhaseError, err.Error(), map[string]any{"kind": domain.Kind(err)})
}

// currentStage guesses the failing step from how far the run got.
func currentStage(r *buildRun) string {
	switch {
	case r.staging == nil:
		return domain.StageCheckIndex
	case r.entries == nil:
		return domain.StageScan
	case r.work == nil:
		return domain.StageRead
	default:
		return domain.StageEmbed
	}
}

func (r *buildRun) execute(ctx context.Context) error {
	if err := domain.ValidateCorpusName(r.req.Corpus); err != nil {
		return err
	}
	if r.req.Mode == "" {
		r.req.Mode = domain.BuildAppend
		r.res.Mode = domain.BuildAppend
	}

	unlock, err := r.locks.tryWrite(r.req.Corpus)
	if err != nil {
		return err
	}
	defer unlock()

	if r.scheduler != nil {
		if err := r.scheduler.Admit(ctx, r.admitWait); err != nil {
			return err
		}
	}

	steps := []func(context.Context) error{
		r.checkIndex,
		r.scan,
		r.read,
		r.buildManifest,
		r.chunk,
		r.embedAndCommit,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkIndex decides between a fresh and a carried-over staging area.
func (r *buildRun) checkIndex(ctx context.Context) error {
	stage := domain.StageCheckIndex
	r.ev.start(stage, "checking existing index")

	exists := r.store.Exists(r.req.Corpus)
	if r.req.Mode == domain.BuildNew && exists && !r.req.Confirmed {
		return fmt.Errorf("%w: NEW build would overwrite corpus %s", domain.ErrConfirmationRequired, r.req.Corpus)
	}

	dim, err := embedderDim(ctx, r.embedder)
	if err != nil {
		return err
	}
	r.dim = dim
	r.created = r.now()

	mode := r.req.Mode
	if mode == domain.BuildAppend {
		mode = r.appendMode(ctx, exists)
	}
	r.res.Mode = mode

	staging, err := r.store.Stage(ctx, r.req.Corpus, mode == domain.BuildAppend)
	if err != nil {
		return err
	}
	r.staging = staging
	r.prev, r.ledger = staging.Previous()
	if r.ledger == nil {
		r.ledger = domain.FingerprintLedger{}
	}

	r.ev.end(stage, fmt.Sprintf("mode %s", mode), map[string]any{"mode": string(mode), "vector_dim": dim})
	return nil
}

// appendMode checks that an existing corpus can be extended and falls
// back to NEW when it cannot.
func (r *buildRun) appendMode(ctx context.Context, exists bool) domain.BuildMode {
	stage := domain.StageCheckIndex
	if !exists {
		r.ev.info(stage, "no existing index, building NEW", nil)
		return domain.BuildNew
	}

	snap, err := r.store.Open(ctx, r.req.Corpus)
	if err != nil {
		r.warn(stage, fmt.Sprintf("existing index unusable (%v), building NEW", err))
		return domain.BuildNew
	}
	desc := snap.Descriptor
	_ = snap.Close()

	if desc.VectorDim != 0 && !desc.Compatible(r.dim) {
		r.warn(stage, fmt.Sprintf("existing index has vector_dim=%d but %s produces %d, building NEW",
			desc.VectorDim, r.embedder.ModelName(), r.dim))
		return domain.BuildNew
	}
	if !desc.CreatedAt.IsZero() {
		r.created = desc.CreatedAt
	}
	return domain.BuildAppend
}

func (r *buildRun) warn(stage, msg string) {
	buildLog.Warn("%s: %s", r.req.Corpus, msg)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.ev.warn(stage, msg, nil)
}

// scan lists eligible files.
func (r *buildRun) scan(ctx context.Context) error {
	stage := domain.StageScan
	r.ev.start(stage, "scanning "+r.req.Source)

	entries, report, err := r.reader.Scan(ctx, r.req.Source, r.opts.Read)
	if err != nil {
		return err
	}
	r.entries = entries
	r.res.Report = *report
	for _, w := range report.Warnings {
		r.warn(stage, w)
	}
	r.res.Report.Warnings = nil

	r.ev.end(stage, fmt.Sprintf("%d files", len(entries)), map[string]any{
		"total_files": len(entries),
		"skipped":     report.Skipped,
	})
	return nil
}

// read loads every file once, classifies it against the ledger and
// parses the files that changed. Files run on the IO pool in windows.
func (r *buildRun) read(ctx context.Context) error {
	stage := domain.StageRead
	r.ev.start(stage, "reading files")

	work := make([]*fileWork, len(r.entries))
	for i, e := range r.entries {
		work[i] = &fileWork{entry: e}
	}

	err := r.fanOut(ctx, domain.PoolIO, len(work), func(ctx context.Context, i int) error {
		r.readOne(ctx, work[i])
		return nil
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	seen := make(map[string]bool, len(work))
	for _, w := range work {
		mergeReport(&r.res.Report, w.report)
		if !w.ok {
			continue
		}
		seen[w.entry.Path] = true
		if w.kept {
			r.res.Kept++
			r.ev.warn(stage, "keeping previous index of "+w.entry.Path, nil)
			continue
		}
		switch w.change {
		case domain.FileNew:
			r.res.Added++
		case domain.FileModified:
			r.res.Modified++
		case domain.FileUnchanged:
			r.res.Unchanged++
		}
	}
	for _, w := range r.res.Report.Warnings {
		r.ev.warn(stage, w, nil)
	}

	for _, rec := range r.prev.Files {
		if seen[rec.Path] {
			continue
		}
		if err := r.staging.Chunks().DeleteFile(ctx, rec.Path); err != nil {
			return fmt.Errorf("removing chunks of %s: %w", rec.Path, err)
		}
		delete(r.ledger, rec.Path)
		r.removed = append(r.removed, rec.Path)
		r.res.Removed++
	}

	r.work = work
	r.ev.end(stage, fmt.Sprintf("%d new, %d modified, %d unchanged, %d removed",
		r.res.Added, r.res.Modified, r.res.Unchanged, r.res.Removed), map[string]any{
		"added":     r.res.Added,
		"modified":  r.res.Modified,
		"unchanged": r.res.Unchanged,
		"removed":   r.res.Removed,
		"kept":      r.res.Kept,
		"failed":    r.res.Report.Failed,
	})
	return nil
}

func (r *buildRun) readOne(ctx context.Context, w *fileWork) {
	prevRec, known := r.prev.Lookup(w.entry.Path)
	fp, fingerprinted := r.ledger[w.entry.Path]
	if known && fingerprinted && fp.Size == w.entry.Size && fp.MTime.Equal(w.entry.MTime) {
		w.change = domain.FileUnchanged
		w.record = prevRec
		w.report.Success++
		w.ok = true
		return
	}

	raw, hash, err := r.reader.Load(ctx, w.entry, r.opts.Read)
	if err != nil {
		w.report.AddSkip(w.entry.Path, readFailure(err))
		if known {
			w.keepPrevious(prevRec)
		}
		return
	}
	w.hash = hash

	switch {
	case !known:
		w.change = domain.FileNew
	case fingerprinted && fp.Size == w.entry.Size && fp.Hash == hash:
		w.change = domain.FileUnchanged
		w.record = prevRec
		w.touched = true
		w.report.Success++
		w.ok = true
		return
	default:
		w.change = domain.FileModified
		w.record = prevRec
	}

	doc, warnings, err := r.reader.Parse(ctx, w.entry, raw, hash)
	if err != nil {
		w.report.AddFailure(w.entry.Path, err.Error())
		if known {
			w.keepPrevious(prevRec)
		}
		return
	}
	for _, warning := range warnings {
		w.report.Warnings = append(w.report.Warnings, w.entry.Path+": "+warning)
	}
	w.report.Success++
	w.doc = doc
	w.ok = true
}

// keepPrevious retains the committed record and chunks of an indexed file
// that could not be read this time. Its ledger entry is left alone so the
// next build tries again.
func (w *fileWork) keepPrevious(rec domain.FileRecord) {
	w.change = domain.FileUnchanged
	w.record = rec
	w.kept = true
	w.ok = true
}

func mergeReport(dst *domain.ReadReport, src domain.ReadReport) {
	dst.Success += src.Success
	dst.Failed += src.Failed
	dst.Skipped += src.Skipped
	dst.Skips = append(dst.Skips, src.Skips...)
	dst.Warnings = append(dst.Warnings, src.Warnings...)
}

// buildManifest creates one record per readable file in scan order.
func (r *buildRun) buildManifest(_ context.Context) error {
	stage := domain.StageManifest
	r.ev.start(stage, "building manifest")
	now := r.now()

	files := 0
	for _, w := range r.work {
		if !w.ok {
			continue
		}
		files++
		if w.change == domain.FileUnchanged {
			if w.kept {
				continue
			}
			w.record.LastSeenAt = now
			if w.touched {
				fp := r.ledger[w.entry.Path]
				fp.MTime = w.entry.MTime
				fp.LastProcessed = now
				r.ledger[w.entry.Path] = fp
			}
			continue
		}
		rec := w.doc.Record(now, nil)
		if w.change == domain.FileModified && !w.record.AddedAt.IsZero() {
			rec.AddedAt = w.record.AddedAt
		}
		w.record = rec
		r.ledger[w.entry.Path] = domain.Fingerprint{
			Hash:          w.hash,
			MTime:         w.entry.MTime,
			Size:          w.entry.Size,
			LastProcessed: now,
		}
	}

	r.ev.end(stage, fmt.Sprintf("%d records", files), map[string]any{"files": files})
	return nil
}

// chunk splits changed documents on the CPU pool.
func (r *buildRun) chunk(ctx context.Context) error {
	stage := domain.StageChunk
	r.ev.start(stage, "chunking documents")

	pipeline, err := postprocessors.NewChunkingPipeline(r.opts.ChunkSize, r.opts.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("chunking pipeline: %w", err)
	}

	var pending []int
	for i, w := range r.work {
		if w.ok && w.doc != nil {
			pending = append(pending, i)
		}
	}

	model := r.embedder.ModelName()
	err = r.fanOut(ctx, domain.PoolCPU, len(pending), func(ctx context.Context, i int) error {
		w := r.work[pending[i]]
		chunks, err := pipeline.Process(ctx, w.doc)
		if err != nil {
			return fmt.Errorf("chunking %s: %w", w.entry.Path, err)
		}
		for j := range chunks {
			chunks[j].EmbeddingModelID = model
			chunks[j].FilePath = w.entry.Path
		}
		w.chunks = chunks
		w.doc.Content = ""
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
		}
		return err
	}

	total := 0
	for _, i := range pending {
		total += len(r.work[i].chunks)
	}
	r.ev.end(stage, fmt.Sprintf("%d chunks", total), map[string]any{"total_chunks": total})
	return nil
}

// embedAndCommit vectorises new chunks in batches, persists each file as
// soon as all its chunks have vectors, then writes the artifacts and
// commits the staging area.
func (r *buildRun) embedAndCommit(ctx context.Context) error {
	stage := domain.StageEmbed
	r.ev.start(stage, "embedding chunks")

	var queue []*domain.Chunk
	var files []*fileWork
	for _, w := range r.work {
		if !w.ok || w.change == domain.FileUnchanged {
			continue
		}
		files = append(files, w)
		for j := range w.chunks {
			queue = append(queue, &w.chunks[j])
		}
	}

	planned := r.batchSize(ctx)
	done := 0
	var cursor flushCursor
	for done < len(queue) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
		}
		size := planned
		if r.scheduler != nil {
			if r.scheduler.Throttled() && r.throttleSleep > 0 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
				case <-time.After(r.throttleSleep):
				}
			}
			size = r.scheduler.NextBatch(planned)
		}

		batch := queue[done:min(done+size, len(queue))]
		if err := r.embedBatch(ctx, batch); err != nil {
			return err
		}
		done += len(batch)
		r.ev.info(stage, fmt.Sprintf("embedded %d/%d", done, len(queue)), map[string]any{
			"batch_size": size,
			"done":       done,
			"total":      len(queue),
		})

		if err := r.flush(ctx, files, &cursor, done); err != nil {
			return err
		}
	}
	if err := r.flush(ctx, files, &cursor, len(queue)); err != nil {
		return err
	}

	return r.commit(ctx)
}

func (r *buildRun) batchSize(ctx context.Context) int {
	docs := len(r.entries)
	if r.scheduler == nil {
		return BatchSize(docs, r.dim, 0, domain.DeviceCPU)
	}
	return BatchSize(docs, r.dim, r.scheduler.AvailableMemory(ctx), r.scheduler.Device())
}

// embedBatch fills the vectors of one batch, retrying once.
func (r *buildRun) embedBatch(ctx context.Context, batch []*domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	var vectors [][]float32
	var err error
	for attempt := 1; attempt <= embedAttempts; attempt++ {
		vectors, err = r.embedder.EmbedBatch(ctx, texts)
		if err == nil || ctx.Err() != nil {
			break
		}
		buildLog.Warn("%s: embedding batch of %d failed (attempt %d): %v", r.req.Corpus, len(texts), attempt, err)
	}
	if err != nil {
		return providerError("embedding batch", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: %d vectors for %d texts", domain.ErrProviderFailure, len(vectors), len(batch))
	}
	for i, v := range vectors {
		if len(v) != r.dim {
			return fmt.Errorf("%w: got %d-dim vector, expected %d", domain.ErrDimensionMismatch, len(v), r.dim)
		}
		batch[i].Embedding = v
	}
	return nil
}

// flushCursor tracks the next file to persist and how many queued
// chunks precede it.
type flushCursor struct {
	file   int
	offset int
}

// flush persists files, in scan order, whose chunks are all embedded.
// embedded is the number of queued chunks that have vectors.
func (r *buildRun) flush(ctx context.Context, files []*fileWork, cur *flushCursor, embedded int) error {
	for ; cur.file < len(files); cur.file++ {
		w := files[cur.file]
		n := len(w.chunks)
		if cur.offset+n > embedded {
			return nil
		}
		if err := r.staging.Chunks().ReplaceFile(ctx, w.entry.Path, w.chunks); err != nil {
			return fmt.Errorf("storing chunks of %s: %w", w.entry.Path, err)
		}
		ids := make([]string, n)
		for j, c := range w.chunks {
			ids[j] = c.ID
		}
		w.record.ChunkIDs = ids
		w.chunks = nil
		cur.offset += n
	}
	return nil
}

func (r *buildRun) commit(ctx context.Context) error {
	stage := domain.StageEmbed
	now := r.now()

	manifest := domain.Manifest{
		Files:        make([]domain.FileRecord, 0, len(r.work)),
		EmbedModelID: r.embedder.ModelName(),
		UpdatedAt:    now,
	}
	for _, w := range r.work {
		if !w.ok {
			continue
		}
		if w.record.ChunkIDs == nil {
			w.record.ChunkIDs = []string{}
		}
		manifest.Files = append(manifest.Files, w.record)
	}

	desc := domain.Descriptor{
		EmbeddingModelID: r.embedder.ModelName(),
		VectorDim:        r.dim,
		CreatedAt:        r.created,
	}
	if err := errors.Join(
		r.staging.WriteManifest(manifest),
		r.staging.WriteLedger(r.ledger),
		r.staging.WriteDescriptor(desc),
	); err != nil {
		return fmt.Errorf("writing corpus artifacts: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	if err := r.staging.Commit(ctx); err != nil {
		return fmt.Errorf("committing %s: %w", r.req.Corpus, err)
	}
	r.locks.bump(r.req.Corpus)

	r.res.FileCount = len(manifest.Files)
	r.res.ChunkCount = manifest.ChunkCount()
	r.ev.end(stage, fmt.Sprintf("committed %d files, %d chunks", r.res.FileCount, r.res.ChunkCount), map[string]any{
		"files":  r.res.FileCount,
		"chunks": r.res.ChunkCount,
	})
	return nil
}

// fanOut runs fn for indices [0, n) in windows sized by the named pool.
// Each window reports the remaining queue depth to the pool first.
func (r *buildRun) fanOut(ctx context.Context, kind domain.PoolKind, n int, fn func(context.Context, int) error) error {
	var pool *AdaptivePool
	if r.scheduler != nil {
		pool = r.scheduler.Pool(kind)
	}

	for start := 0; start < n; {
		workers := domain.DefaultPoolLimits()[kind].Min
		if pool != nil {
			workers = pool.Observe(n - start)
		}
		end := min(start+workers, n)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := start; i < end; i++ {
			g.Go(func() error {
				return fn(gctx, i)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		start = end
	}
	return nil
}
