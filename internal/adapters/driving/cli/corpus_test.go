package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func TestCorpusList_Empty(t *testing.T) {
	out, err := execute(t, &Services{Corpus: &mockCorpus{}}, "", "corpus")

	require.NoError(t, err)
	assert.Contains(t, out, "No corpora yet.")
}

func TestCorpusList_EmptyJSON(t *testing.T) {
	out, err := execute(t, &Services{Corpus: &mockCorpus{}}, "", "corpus", "list", "--json")

	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestCorpusList_Table(t *testing.T) {
	svc := &mockCorpus{list: []domain.CorpusStats{
		{Name: "papers", FileCount: 12, ChunkCount: 340, BytesOnDisk: 1_500_000, EmbeddingModelID: "ollama/nomic", ModifiedAt: time.Now()},
	}}

	out, err := execute(t, &Services{Corpus: svc}, "", "corpora", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "papers")
	assert.Contains(t, out, "340")
	assert.Contains(t, out, "1.5 MB")
	assert.Contains(t, out, "ollama/nomic")
}

func TestCorpusStats(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &mockCorpus{stats: &domain.CorpusStats{
		Name: "papers", FileCount: 2, ChunkCount: 9, EmbeddingModelID: "m", VectorDim: 768,
		CreatedAt: at, ModifiedAt: at,
	}}

	out, err := execute(t, &Services{Corpus: svc}, "", "corpus", "stats", "papers")

	require.NoError(t, err)
	assert.Contains(t, out, "Corpus:     papers")
	assert.Contains(t, out, "Model:      m (vector_dim=768)")
	assert.Contains(t, out, "Created:    2026-01-02 03:04:05")
}

func TestCorpusStats_JSON(t *testing.T) {
	svc := &mockCorpus{stats: &domain.CorpusStats{Name: "papers", ChunkCount: 9}}

	out, err := execute(t, &Services{Corpus: svc}, "", "corpus", "stats", "papers", "--json")

	require.NoError(t, err)
	var got domain.CorpusStats
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "papers", got.Name)
	assert.Equal(t, 9, got.ChunkCount)
}

func TestCorpusStats_Missing(t *testing.T) {
	svc := &mockCorpus{err: domain.ErrMissingCorpus}

	_, err := execute(t, &Services{Corpus: svc}, "", "corpus", "stats", "ghost")

	assert.ErrorIs(t, err, domain.ErrMissingCorpus)
}

func TestCorpusCreate(t *testing.T) {
	svc := &mockCorpus{}

	out, err := execute(t, &Services{Corpus: svc}, "", "corpus", "create", "fresh")

	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, svc.created)
	assert.Contains(t, out, "Corpus fresh created.")
}

func TestCorpusDelete_Prompt(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		deleted bool
	}{
		{"yes", "y\n", true},
		{"long yes", "YES\n", true},
		{"no", "n\n", false},
		{"eof", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCorpus{}

			out, err := execute(t, &Services{Corpus: svc}, tt.answer, "corpus", "delete", "old")

			require.NoError(t, err)
			assert.Contains(t, out, "Delete corpus old and its conversation? [y/N]")
			if tt.deleted {
				assert.Equal(t, []string{"old"}, svc.deleted)
				assert.Contains(t, out, "Corpus old deleted.")
			} else {
				assert.Empty(t, svc.deleted)
				assert.Contains(t, out, "Cancelled.")
			}
		})
	}
}

func TestCorpusDelete_Yes(t *testing.T) {
	svc := &mockCorpus{}

	out, err := execute(t, &Services{Corpus: svc}, "", "corpus", "delete", "old", "--yes")

	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, svc.deleted)
	assert.NotContains(t, out, "[y/N]")
}

func TestCorpusRename(t *testing.T) {
	svc := &mockCorpus{}

	out, err := execute(t, &Services{Corpus: svc}, "", "corpus", "rename", "a", "b")

	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"a", "b"}}, svc.renamed)
	assert.Contains(t, out, "Corpus a renamed to b.")
}

func TestCorpus_NotConfigured(t *testing.T) {
	_, err := execute(t, &Services{}, "", "corpus", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus service not configured")
}
