package corpusfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

var testDesc = domain.Descriptor{EmbeddingModelID: "hash-4", VectorDim: 4}

// buildCorpus commits a corpus holding one file with the given chunks.
func buildCorpus(t *testing.T, s *Store, name, file string, chunkIDs ...string) {
	t.Helper()
	ctx := context.Background()

	st, err := s.Stage(ctx, name, true)
	require.NoError(t, err)
	defer st.Discard() //nolint:errcheck

	prev, ledger := st.Previous()
	var chunks []domain.Chunk
	for i, id := range chunkIDs {
		chunks = append(chunks, domain.Chunk{ID: id, FilePath: file, Content: "c " + id, Position: i,
			EmbeddingModelID: "hash-4", Embedding: []float32{1, 0, 0, 0}})
	}
	require.NoError(t, st.Chunks().ReplaceFile(ctx, file, chunks))

	prev.Files = append(prev.Files, domain.FileRecord{Path: file, Name: filepath.Base(file), ChunkIDs: chunkIDs})
	prev.EmbedModelID = "hash-4"
	ledger[file] = domain.Fingerprint{Hash: "h-" + file, Size: 1}

	require.NoError(t, st.WriteManifest(prev))
	require.NoError(t, st.WriteLedger(ledger))
	require.NoError(t, st.WriteDescriptor(domain.Descriptor{EmbeddingModelID: "hash-4", VectorDim: 4, CreatedAt: time.Now()}))
	require.NoError(t, st.Commit(ctx))
}

func TestCreate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "notes", testDesc))
	assert.True(t, s.Exists("notes"))

	for _, f := range []string{domain.DescriptorFile, domain.ManifestFile, domain.FingerprintsFile, domain.DocstoreFile, domain.VectorStoreFile} {
		_, err := os.Stat(filepath.Join(s.Root(), "notes", f))
		assert.NoError(t, err, f)
	}

	assert.ErrorIs(t, s.Create(ctx, "notes", testDesc), domain.ErrAlreadyExists)
	assert.ErrorIs(t, s.Create(ctx, "../escape", testDesc), domain.ErrInvalidInput)
}

func TestOpen_MissingAndEmpty(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Open(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrMissingCorpus)

	require.NoError(t, s.Create(ctx, "empty", testDesc))
	snap, err := s.Open(ctx, "empty")
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, 4, snap.Descriptor.VectorDim)
	assert.Empty(t, snap.Manifest.Files)
	assert.False(t, snap.DescriptorInferred)
}

func TestStageCommit_NewThenAppend(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	buildCorpus(t, s, "docs", "a.txt", "a1", "a2")
	buildCorpus(t, s, "docs", "b.txt", "b1")

	snap, err := s.Open(ctx, "docs")
	require.NoError(t, err)
	defer snap.Close()

	assert.Len(t, snap.Manifest.Files, 2, "append carries previous records")
	assert.Len(t, snap.Ledger, 2)
	n, err := snap.Chunks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := os.ReadDir(filepath.Join(s.Root(), stagingDir))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directories are consumed by commit")
}

func TestStage_DiscardLeavesCommittedIntact(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	buildCorpus(t, s, "docs", "a.txt", "a1")

	st, err := s.Stage(ctx, "docs", false)
	require.NoError(t, err)
	prev, ledger := st.Previous()
	assert.Empty(t, prev.Files)
	assert.Empty(t, ledger)

	require.NoError(t, st.Chunks().ReplaceFile(ctx, "z.txt", []domain.Chunk{{ID: "z1", FilePath: "z.txt", Content: "z"}}))
	require.NoError(t, st.Discard())
	require.NoError(t, st.Discard())
	assert.NoDirExists(t, st.Dir())

	stats, err := s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.ChunkCount)
}

func TestCommit_CancelledContext(t *testing.T) {
	s := newStore(t)
	st, err := s.Stage(context.Background(), "docs", false)
	require.NoError(t, err)
	defer st.Discard() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, st.Commit(ctx), context.Canceled)
	assert.False(t, s.Exists("docs"))
}

func TestOpen_DescriptorFallback(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	buildCorpus(t, s, "docs", "a.txt", "a1")

	require.NoError(t, os.Remove(filepath.Join(s.Root(), "docs", domain.DescriptorFile)))

	snap, err := s.Open(ctx, "docs")
	require.NoError(t, err)
	defer snap.Close()
	assert.True(t, snap.DescriptorInferred)
	assert.Equal(t, 4, snap.Descriptor.VectorDim)
	assert.Equal(t, "hash-4", snap.Descriptor.EmbeddingModelID)
}

func TestOpen_DescriptorMissingAndNoVectors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "bare", testDesc))
	require.NoError(t, os.Remove(filepath.Join(s.Root(), "bare", domain.DescriptorFile)))

	_, err := s.Open(ctx, "bare")
	assert.ErrorIs(t, err, domain.ErrCorruptCorpus)
}

func TestOpen_CorruptManifest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "bad", testDesc))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "bad", domain.ManifestFile), []byte("{"), 0600))

	_, err := s.Open(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrCorruptCorpus)
}

func TestOpen_MissingStoreFileIsCorrupt(t *testing.T) {
	for _, name := range []string{domain.DocstoreFile, domain.VectorStoreFile} {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			buildCorpus(t, s, "geo", "a.txt", "c1")

			path := filepath.Join(s.Root(), "geo", name)
			require.NoError(t, os.Remove(path))

			_, err := s.Open(ctx, "geo")
			assert.ErrorIs(t, err, domain.ErrCorruptCorpus)
			assert.NoFileExists(t, path)

			_, err = s.Stage(ctx, "geo", true)
			assert.ErrorIs(t, err, domain.ErrCorruptCorpus)

			require.NoError(t, os.Remove(filepath.Join(s.Root(), "geo", domain.DescriptorFile)))
			_, err = s.Open(ctx, "geo")
			assert.ErrorIs(t, err, domain.ErrCorruptCorpus)
			assert.NoFileExists(t, path)
		})
	}
}

func TestList_ByRecency(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, s.Create(ctx, name, testDesc))
	}
	touch := func(name string, at time.Time) {
		dir := filepath.Join(s.Root(), name)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			require.NoError(t, os.Chtimes(filepath.Join(dir, e.Name()), at, at))
		}
	}
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch("alpha", base)
	touch("beta", base.Add(10*time.Minute))
	touch("gamma", base)

	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), stagingDir, "x"), 0700))

	list, err := s.List(ctx)
	require.NoError(t, err)
	var names []string
	for _, st := range list {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"beta", "alpha", "gamma"}, names)
}

func TestRenameAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "one", testDesc))
	require.NoError(t, s.Create(ctx, "two", testDesc))

	assert.ErrorIs(t, s.Rename(ctx, "one", "two"), domain.ErrAlreadyExists)
	assert.ErrorIs(t, s.Rename(ctx, "ghost", "three"), domain.ErrMissingCorpus)
	require.NoError(t, s.Rename(ctx, "one", "three"))
	assert.False(t, s.Exists("one"))
	assert.True(t, s.Exists("three"))

	require.NoError(t, s.Delete(ctx, "three"))
	assert.False(t, s.Exists("three"))
	assert.ErrorIs(t, s.Delete(ctx, "three"), domain.ErrMissingCorpus)
}

func TestStats(t *testing.T) {
	s := newStore(t)
	buildCorpus(t, s, "docs", "a.txt", "a1", "a2")

	st, err := s.Stats(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", st.Name)
	assert.Equal(t, 1, st.FileCount)
	assert.Equal(t, 2, st.ChunkCount)
	assert.Equal(t, 4, st.VectorDim)
	assert.Equal(t, "hash-4", st.EmbeddingModelID)
	assert.Positive(t, st.BytesOnDisk)
	assert.False(t, st.ModifiedAt.IsZero())
}
