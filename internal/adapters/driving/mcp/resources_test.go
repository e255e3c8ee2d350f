package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func TestExtractCorpusName(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid manifest URI", uri: "ragpro://corpora/geo/manifest", expected: "geo"},
		{name: "invalid prefix", uri: "file://corpora/geo/manifest", expected: ""},
		{name: "missing manifest suffix", uri: "ragpro://corpora/geo", expected: ""},
		{name: "empty name", uri: "ragpro://corpora//manifest", expected: ""},
		{name: "nested path", uri: "ragpro://corpora/a/b/manifest", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractCorpusName(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleCorporaResource(t *testing.T) {
	ctx := context.Background()

	t.Run("no corpora returns empty list", func(t *testing.T) {
		server, err := NewServer(validPorts())
		require.NoError(t, err)

		result, err := server.handleCorporaResource(ctx, makeReadResourceRequest("ragpro://corpora"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns corpus stats", func(t *testing.T) {
		corpus := &mockCorpusService{corpora: []domain.CorpusStats{{Name: "geo", FileCount: 3, VectorDim: 512}}}
		server, err := NewServer(&Ports{Corpus: corpus, Chat: &mockChatService{}})
		require.NoError(t, err)

		result, err := server.handleCorporaResource(ctx, makeReadResourceRequest("ragpro://corpora"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var got []domain.CorpusStats
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "geo", got[0].Name)
		assert.Equal(t, 512, got[0].VectorDim)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		corpus := &mockCorpusService{err: errors.New("boom")}
		server, err := NewServer(&Ports{Corpus: corpus, Chat: &mockChatService{}})
		require.NoError(t, err)

		_, err = server.handleCorporaResource(ctx, makeReadResourceRequest("ragpro://corpora"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing corpora")
	})
}

func TestServer_handleManifestResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns manifest", func(t *testing.T) {
		corpus := &mockCorpusService{manifest: &domain.Manifest{
			EmbedModelID: "hash-512",
			Files:        []domain.FileRecord{{Path: "/src/a.txt", Name: "a.txt", ChunkIDs: []string{"c1"}}},
		}}
		server, err := NewServer(&Ports{Corpus: corpus, Chat: &mockChatService{}})
		require.NoError(t, err)

		result, err := server.handleManifestResource(ctx, makeReadResourceRequest("ragpro://corpora/geo/manifest"))
		require.NoError(t, err)
		assert.Equal(t, "geo", corpus.asked)
		assert.Contains(t, result.Contents[0].Text, `"embed_model_id": "hash-512"`)
		assert.Contains(t, result.Contents[0].Text, "a.txt")
	})

	t.Run("bad URI is not found", func(t *testing.T) {
		server, err := NewServer(validPorts())
		require.NoError(t, err)

		_, err = server.handleManifestResource(ctx, makeReadResourceRequest("ragpro://corpora/geo"))
		require.Error(t, err)
	})

	t.Run("missing corpus", func(t *testing.T) {
		corpus := &mockCorpusService{err: domain.ErrMissingCorpus}
		server, err := NewServer(&Ports{Corpus: corpus, Chat: &mockChatService{}})
		require.NoError(t, err)

		_, err = server.handleManifestResource(ctx, makeReadResourceRequest("ragpro://corpora/ghost/manifest"))
		assert.ErrorIs(t, err, domain.ErrMissingCorpus)
	})
}
