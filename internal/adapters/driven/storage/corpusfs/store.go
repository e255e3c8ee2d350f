// Package corpusfs keeps every corpus in its own directory under a common
// root. Builds write into a hidden staging directory that is swapped into
// place on commit, so readers only ever see complete corpora.
package corpusfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/storage/sqlite"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.CorpusStore = (*Store)(nil)

const (
	stagingDir = ".staging"
	trashDir   = ".trash"
)

var log = logger.For("corpus")

// Store manages the corpora under one root directory.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a store rooted at root. An empty root defaults to
// ~/.ragpro/corpora.
func NewStore(root string) (*Store, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		root = filepath.Join(home, ".ragpro", "corpora")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating corpus root: %w", err)
	}
	return &Store{root: root, now: time.Now}, nil
}

// Root returns the directory holding all corpora.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) dir(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether a committed corpus directory exists.
func (s *Store) Exists(name string) bool {
	if domain.ValidateCorpusName(name) != nil {
		return false
	}
	info, err := os.Stat(s.dir(name))
	return err == nil && info.IsDir()
}

// List returns stats for every corpus, most recently modified first with
// ties broken by name. Corpora whose artifacts cannot be read are listed
// with what is known about them.
func (s *Store) List(ctx context.Context) ([]domain.CorpusStats, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading corpus root: %w", err)
	}

	var out []domain.CorpusStats //nolint:prealloc // hidden entries are skipped
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || domain.ValidateCorpusName(e.Name()) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := s.Stats(ctx, e.Name())
		if err != nil {
			log.Warn("%s: %v", e.Name(), err)
			st = &domain.CorpusStats{Name: e.Name()}
			if info, infoErr := e.Info(); infoErr == nil {
				st.ModifiedAt = info.ModTime()
			}
		}
		out = append(out, *st)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Stats summarises one corpus.
func (s *Store) Stats(ctx context.Context, name string) (*domain.CorpusStats, error) {
	art, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	size, latest, err := dirUsage(s.dir(name))
	if err != nil {
		return nil, fmt.Errorf("measuring corpus %s: %w", name, err)
	}

	st := &domain.CorpusStats{
		Name:             name,
		FileCount:        len(art.manifest.Files),
		ChunkCount:       art.manifest.ChunkCount(),
		BytesOnDisk:      size,
		CreatedAt:        art.descriptor.CreatedAt,
		EmbeddingModelID: art.descriptor.EmbeddingModelID,
		VectorDim:        art.descriptor.VectorDim,
	}
	if latest != nil {
		st.ModifiedAt = latest.ModTime()
	}
	return st, nil
}

// Create initialises an empty corpus with the given descriptor.
func (s *Store) Create(_ context.Context, name string, desc domain.Descriptor) error {
	if err := domain.ValidateCorpusName(name); err != nil {
		return err
	}
	dir := s.dir(name)
	if err := os.Mkdir(dir, 0700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("corpus %s: %w", name, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("creating corpus %s: %w", name, err)
	}

	if desc.CreatedAt.IsZero() {
		desc.CreatedAt = s.now()
	}
	err := errors.Join(
		writeJSON(filepath.Join(dir, domain.DescriptorFile), desc),
		writeJSON(filepath.Join(dir, domain.ManifestFile), domain.Manifest{
			Files:        []domain.FileRecord{},
			EmbedModelID: desc.EmbeddingModelID,
			UpdatedAt:    desc.CreatedAt,
		}),
		writeJSON(filepath.Join(dir, domain.FingerprintsFile), domain.FingerprintLedger{}),
	)
	if err == nil {
		var chunks *sqlite.Store
		if chunks, err = sqlite.Open(dir); err == nil {
			err = chunks.Close()
		}
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("creating corpus %s: %w", name, err)
	}
	return nil
}

// Delete removes a corpus and everything in it.
func (s *Store) Delete(_ context.Context, name string) error {
	if !s.Exists(name) {
		return fmt.Errorf("%s: %w", name, domain.ErrMissingCorpus)
	}
	if err := os.RemoveAll(s.dir(name)); err != nil {
		return fmt.Errorf("deleting corpus %s: %w", name, err)
	}
	return nil
}

// Rename moves a corpus to a new name.
func (s *Store) Rename(_ context.Context, oldName, newName string) error {
	if err := domain.ValidateCorpusName(newName); err != nil {
		return err
	}
	if !s.Exists(oldName) {
		return fmt.Errorf("%s: %w", oldName, domain.ErrMissingCorpus)
	}
	if _, err := os.Stat(s.dir(newName)); err == nil {
		return fmt.Errorf("corpus %s: %w", newName, domain.ErrAlreadyExists)
	}
	if err := os.Rename(s.dir(oldName), s.dir(newName)); err != nil {
		return fmt.Errorf("renaming corpus %s: %w", oldName, err)
	}
	return nil
}

// Open loads a committed corpus for reading.
func (s *Store) Open(ctx context.Context, name string) (*driven.CorpusSnapshot, error) {
	art, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	chunks, err := sqlite.OpenExisting(s.dir(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err)
	}
	return &driven.CorpusSnapshot{
		Name:               name,
		Descriptor:         art.descriptor,
		Manifest:           art.manifest,
		Ledger:             art.ledger,
		Chunks:             chunks,
		DescriptorInferred: art.inferred,
	}, nil
}

type artifacts struct {
	descriptor domain.Descriptor
	manifest   domain.Manifest
	ledger     domain.FingerprintLedger
	inferred   bool
}

// load reads the JSON artifacts of a committed corpus. A missing
// descriptor is rebuilt from the stored vectors.
func (s *Store) load(ctx context.Context, name string) (*artifacts, error) {
	if !s.Exists(name) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrMissingCorpus)
	}
	dir := s.dir(name)
	art := &artifacts{ledger: domain.FingerprintLedger{}}

	if _, err := readJSON(filepath.Join(dir, domain.ManifestFile), &art.manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err)
	}
	if _, err := readJSON(filepath.Join(dir, domain.FingerprintsFile), &art.ledger); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err)
	}
	if art.ledger == nil {
		art.ledger = domain.FingerprintLedger{}
	}

	found, err := readJSON(filepath.Join(dir, domain.DescriptorFile), &art.descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err)
	}
	if found {
		return art, nil
	}

	desc, err := inferDescriptor(ctx, dir, art.manifest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err)
	}
	log.Warn("%s: descriptor missing, inferred vector_dim=%d from stored vectors", name, desc.VectorDim)
	art.descriptor = desc
	art.inferred = true
	return art, nil
}

// inferDescriptor rebuilds a descriptor from one stored vector.
func inferDescriptor(ctx context.Context, dir string, manifest domain.Manifest) (domain.Descriptor, error) {
	chunks, err := sqlite.OpenExisting(dir)
	if err != nil {
		return domain.Descriptor{}, err
	}
	defer chunks.Close()

	dim, err := chunks.VectorDim(ctx)
	if err != nil {
		return domain.Descriptor{}, err
	}
	if dim == 0 {
		return domain.Descriptor{}, errors.New("descriptor missing and no stored vectors to infer it from")
	}

	model := manifest.EmbedModelID
	if model == "" {
		if model, err = chunks.EmbeddingModel(ctx); err != nil {
			return domain.Descriptor{}, err
		}
	}

	created := manifest.UpdatedAt
	if info, statErr := os.Stat(dir); statErr == nil && created.IsZero() {
		created = info.ModTime()
	}
	return domain.Descriptor{EmbeddingModelID: model, VectorDim: dim, CreatedAt: created}, nil
}
