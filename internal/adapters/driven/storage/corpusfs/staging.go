package corpusfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/storage/sqlite"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// carried lists the files copied from a committed corpus into staging.
var carried = []string{
	domain.DocstoreFile,
	domain.VectorStoreFile,
	domain.ManifestFile,
	domain.FingerprintsFile,
	domain.DescriptorFile,
}

// Ensure staging implements the interface.
var _ driven.Staging = (*staging)(nil)

type staging struct {
	store  *Store
	name   string
	dir    string
	chunks *sqlite.Store

	prevManifest domain.Manifest
	prevLedger   domain.FingerprintLedger

	mu   sync.Mutex
	done bool
}

// Stage prepares a private working copy for a build under
// <root>/.staging/<name>-<id>.
func (s *Store) Stage(ctx context.Context, name string, carryOver bool) (driven.Staging, error) {
	if err := domain.ValidateCorpusName(name); err != nil {
		return nil, err
	}
	parent := filepath.Join(s.root, stagingDir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return nil, fmt.Errorf("creating staging root: %w", err)
	}
	dir := filepath.Join(parent, name+"-"+uuid.NewString()[:8])
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	st := &staging{store: s, name: name, dir: dir, prevLedger: domain.FingerprintLedger{}}
	fail := func(err error) (driven.Staging, error) {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	if carryOver && s.Exists(name) {
		for _, f := range []string{domain.DocstoreFile, domain.VectorStoreFile} {
			if _, err := os.Stat(filepath.Join(s.dir(name), f)); err != nil {
				return fail(fmt.Errorf("%w: %s: %s: %v", domain.ErrCorruptCorpus, name, f, err))
			}
		}
		for _, f := range carried {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := copyFile(filepath.Join(s.dir(name), f), filepath.Join(dir, f)); err != nil {
				return fail(fmt.Errorf("copying %s into staging: %w", f, err))
			}
		}
		if _, err := readJSON(filepath.Join(dir, domain.ManifestFile), &st.prevManifest); err != nil {
			return fail(fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err))
		}
		if _, err := readJSON(filepath.Join(dir, domain.FingerprintsFile), &st.prevLedger); err != nil {
			return fail(fmt.Errorf("%w: %s: %v", domain.ErrCorruptCorpus, name, err))
		}
		if st.prevLedger == nil {
			st.prevLedger = domain.FingerprintLedger{}
		}
	}

	chunks, err := sqlite.Open(dir)
	if err != nil {
		return fail(fmt.Errorf("opening staged chunk store: %w", err))
	}
	st.chunks = chunks
	return st, nil
}

func (st *staging) Dir() string {
	return st.dir
}

func (st *staging) Chunks() driven.ChunkStore {
	return st.chunks
}

func (st *staging) Previous() (domain.Manifest, domain.FingerprintLedger) {
	return st.prevManifest, st.prevLedger
}

func (st *staging) WriteDescriptor(desc domain.Descriptor) error {
	return writeJSON(filepath.Join(st.dir, domain.DescriptorFile), desc)
}

func (st *staging) WriteManifest(m domain.Manifest) error {
	if m.Files == nil {
		m.Files = []domain.FileRecord{}
	}
	return writeJSON(filepath.Join(st.dir, domain.ManifestFile), m)
}

func (st *staging) WriteLedger(l domain.FingerprintLedger) error {
	if l == nil {
		l = domain.FingerprintLedger{}
	}
	return writeJSON(filepath.Join(st.dir, domain.FingerprintsFile), l)
}

// Commit closes the staged store and swaps the staging directory into
// place. The previous corpus, if any, is moved aside first and removed
// once the swap has succeeded.
func (st *staging) Commit(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return fmt.Errorf("%w: staging already finished", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := st.chunks.Close(); err != nil {
		return fmt.Errorf("closing staged chunk store: %w", err)
	}

	target := st.store.dir(st.name)
	var aside string
	if _, err := os.Stat(target); err == nil {
		trash := filepath.Join(st.store.root, trashDir)
		if err := os.MkdirAll(trash, 0700); err != nil {
			return fmt.Errorf("creating trash directory: %w", err)
		}
		aside = filepath.Join(trash, filepath.Base(st.dir))
		if err := os.Rename(target, aside); err != nil {
			return fmt.Errorf("moving previous corpus aside: %w", err)
		}
	}

	if err := os.Rename(st.dir, target); err != nil {
		if aside != "" {
			_ = os.Rename(aside, target)
		}
		return fmt.Errorf("committing corpus %s: %w", st.name, err)
	}
	st.done = true

	if aside != "" {
		if err := os.RemoveAll(aside); err != nil {
			log.Warn("removing previous copy of %s: %v", st.name, err)
		}
	}
	return nil
}

// Discard removes the staging directory. It is a no-op after Commit.
func (st *staging) Discard() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return nil
	}
	st.done = true
	_ = st.chunks.Close()
	return os.RemoveAll(st.dir)
}
