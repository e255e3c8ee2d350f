package services

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

var readerLog = logger.For("reader")

// Reader turns an ingest path into normalised documents.
// Every outcome is recorded in a ReadReport; single files never halt a read.
type Reader struct {
	scanner  driven.SourceScanner
	registry driven.NormaliserRegistry
}

// NewReader creates a reader.
func NewReader(scanner driven.SourceScanner, registry driven.NormaliserRegistry) *Reader {
	return &Reader{scanner: scanner, registry: registry}
}

// Scan lists the eligible files under root in lexicographic order.
// Oversized files and extensions without a normaliser are skipped.
// When nothing is eligible the report carries a NoReadableFiles warning.
func (r *Reader) Scan(ctx context.Context, root string, opts domain.ReadOptions) ([]driven.SourceEntry, *domain.ReadReport, error) {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = domain.DefaultMaxFileBytes
	}

	res, err := r.scanner.Scan(ctx, root, opts)
	if err != nil {
		return nil, nil, err
	}

	report := &domain.ReadReport{}
	for _, s := range res.Skips {
		report.AddSkip(s.Path, s.Reason)
	}

	entries := make([]driven.SourceEntry, 0, len(res.Entries))
	for _, e := range res.Entries {
		switch {
		case e.Size > opts.MaxFileBytes:
			report.AddSkip(e.Path, fmt.Sprintf("larger than %d bytes", opts.MaxFileBytes))
		case !r.registry.Supports(e.Ext):
			report.AddSkip(e.Path, fmt.Sprintf("unsupported extension %q", e.Ext))
		default:
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", domain.ErrNoReadableFiles, root))
	}
	return entries, report, nil
}

// Load reads an entry's bytes once and fingerprints them.
func (r *Reader) Load(ctx context.Context, entry driven.SourceEntry, opts domain.ReadOptions) (*domain.RawDocument, string, error) {
	data, err := r.scanner.ReadFile(ctx, entry)
	if err != nil {
		return nil, "", err
	}
	sum := md5.Sum(data) //nolint:gosec // see import
	raw := &domain.RawDocument{
		Path:     entry.Path,
		URI:      entry.AbsPath,
		MIMEType: entry.MIME,
		Content:  data,
		OCR:      opts.OCR,
	}
	return raw, hex.EncodeToString(sum[:]), nil
}

// Parse normalises loaded bytes into a document.
func (r *Reader) Parse(ctx context.Context, entry driven.SourceEntry, raw *domain.RawDocument, hash string) (*domain.Document, []string, error) {
	res, err := r.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	doc := res.Document
	doc.Path = entry.Path
	doc.AbsPath = entry.AbsPath
	doc.Name = entry.Name
	doc.Ext = entry.Ext
	if doc.MIME == "" {
		doc.MIME = entry.MIME
	}
	doc.Size = entry.Size
	doc.MTime = entry.MTime
	doc.Hash = hash
	if !utf8.ValidString(doc.Content) {
		doc.Content = strings.ToValidUTF8(doc.Content, string(utf8.RuneError))
	}
	return &doc, res.Warnings, nil
}

// ReadEntry loads and parses one entry, folding failures into the report.
// It returns nil when the file was skipped.
func (r *Reader) ReadEntry(ctx context.Context, entry driven.SourceEntry, opts domain.ReadOptions, report *domain.ReadReport) *domain.Document {
	raw, hash, err := r.Load(ctx, entry, opts)
	if err != nil {
		report.AddSkip(entry.Path, readFailure(err))
		return nil
	}
	doc, warnings, err := r.Parse(ctx, entry, raw, hash)
	if err != nil {
		readerLog.Debug("%s: %v", entry.Path, err)
		report.AddFailure(entry.Path, err.Error())
		return nil
	}
	for _, w := range warnings {
		report.Warnings = append(report.Warnings, entry.Path+": "+w)
	}
	report.Success++
	return doc
}

// Read scans root and parses every eligible file sequentially.
func (r *Reader) Read(ctx context.Context, root string, opts domain.ReadOptions) ([]domain.Document, *domain.ReadReport, error) {
	entries, report, err := r.Scan(ctx, root, opts)
	if err != nil {
		return nil, nil, err
	}
	docs := make([]domain.Document, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		if doc := r.ReadEntry(ctx, e, opts, report); doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, report, nil
}

func readFailure(err error) string {
	if errors.Is(err, fs.ErrPermission) {
		return "permission denied"
	}
	return err.Error()
}
