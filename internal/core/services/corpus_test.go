package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/storage/memory"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func newTestCorpusService(t *testing.T) (*CorpusService, *memory.MessageLog) {
	t.Helper()
	log := memory.NewMessageLog()
	return NewCorpusService(newTestStore(t), log, newTestEmbedder(t, "hash-64"), NewCorpusLocks()), log
}

func TestCorpusService_CreateUsesEmbedderDimension(t *testing.T) {
	svc, _ := newTestCorpusService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "notes"))
	stats, err := svc.Stats(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, 64, stats.VectorDim)
	assert.Equal(t, "hash-64", stats.EmbeddingModelID)
	assert.Zero(t, stats.ChunkCount)

	assert.ErrorIs(t, svc.Create(ctx, "notes"), domain.ErrAlreadyExists)
	assert.ErrorIs(t, svc.Create(ctx, "../escape"), domain.ErrInvalidInput)
}

func TestCorpusService_DeleteClearsHistory(t *testing.T) {
	svc, log := newTestCorpusService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "notes"))
	require.NoError(t, log.Append(ctx, "notes", domain.Message{Role: domain.RoleUser, Content: "hi"}))

	require.NoError(t, svc.Delete(ctx, "notes"))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	msgs, err := log.Load(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, svc.Delete(ctx, "notes"), domain.ErrMissingCorpus)
}

func TestCorpusService_RenameMovesHistory(t *testing.T) {
	svc, log := newTestCorpusService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "old"))
	require.NoError(t, svc.Create(ctx, "taken"))
	require.NoError(t, log.Append(ctx, "old", domain.Message{Role: domain.RoleUser, Content: "hi"}))

	assert.ErrorIs(t, svc.Rename(ctx, "old", "taken"), domain.ErrAlreadyExists)
	assert.ErrorIs(t, svc.Rename(ctx, "ghost", "new"), domain.ErrMissingCorpus)

	require.NoError(t, svc.Rename(ctx, "old", "new"))
	_, err := svc.Stats(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrMissingCorpus)

	msgs, err := log.Load(ctx, "new")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestCorpusService_BusyWhileBuilding(t *testing.T) {
	svc, _ := newTestCorpusService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "notes"))

	unlock, err := svc.locks.tryWrite("notes")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, "notes"), domain.ErrCorpusBusy)
	assert.ErrorIs(t, svc.Rename(ctx, "notes", "other"), domain.ErrCorpusBusy)
	unlock()

	require.NoError(t, svc.Delete(ctx, "notes"))
}

func TestCorpusService_Manifest(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFiles(t, src, capitals)
	store := newTestStore(t)
	emb := newTestEmbedder(t, "hash-64")
	locks := NewCorpusLocks()

	_, err := NewIndexBuilder(store, newTestReader(), testRuntime(emb), locks).Build(ctx, appendReq("geo", src))
	require.NoError(t, err)

	svc := NewCorpusService(store, nil, emb, locks)
	m, err := svc.Manifest(ctx, "geo")
	require.NoError(t, err)
	require.Len(t, m.Files, 3)
	assert.Equal(t, 3, m.ChunkCount())
	assert.Equal(t, "hash-64", m.EmbedModelID)

	_, err = svc.Manifest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrMissingCorpus)
}
