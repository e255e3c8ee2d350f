package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/storage/memory"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func newTestSettings(t *testing.T) (*SettingsService, *memory.ConfigStore) {
	t.Helper()
	store := memory.NewConfigStore(domain.DefaultConfig())
	svc, err := NewSettingsService(store)
	require.NoError(t, err)
	return svc, store
}

func TestSettingsService_KeysCoverEveryValue(t *testing.T) {
	svc, _ := newTestSettings(t)

	keys := svc.Keys()
	require.Len(t, keys, 20)
	assert.Equal(t, "embedding_provider", keys[0])
	assert.Equal(t, "monitor_interval_seconds", keys[len(keys)-1])

	for _, k := range keys {
		_, err := svc.Value(k)
		assert.NoError(t, err, k)
	}
}

func TestSettingsService_Defaults(t *testing.T) {
	svc, _ := newTestSettings(t)

	tests := map[string]string{
		"embedding_provider":  "local",
		"embedding_model_id":  "hash-512",
		"temperature":         "0.1",
		"history_limit":       "10",
		"chunk_size":          "1024",
		"chunk_overlap":       "100",
		"retrieval_top_k":     "5",
		"enable_bm25":         "false",
		"max_file_bytes":      "104857600",
		"llm_timeout_seconds": "120",
	}
	for key, want := range tests {
		got, err := svc.Value(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestSettingsService_SetParsesAndSaves(t *testing.T) {
	svc, store := newTestSettings(t)

	require.NoError(t, svc.Set("retrieval_top_k", "8"))
	require.NoError(t, svc.Set("enable_rerank", "true"))
	require.NoError(t, svc.Set("temperature", "0.7"))

	cfg := svc.Get()
	assert.Equal(t, 8, cfg.RetrievalTopK)
	assert.True(t, cfg.EnableRerank)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 3, store.Saves())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)
}

func TestSettingsService_SetRejectsBadValues(t *testing.T) {
	svc, store := newTestSettings(t)

	tests := []struct {
		key, value string
	}{
		{"retrieval_top_k", "many"},
		{"retrieval_top_k", "0"},
		{"chunk_overlap", "2000"},
		{"enable_bm25", "perhaps"},
		{"llm_provider", "local"},
		{"embedding_provider", "nope"},
		{"no_such_key", "1"},
	}
	for _, tt := range tests {
		err := svc.Set(tt.key, tt.value)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%s=%s", tt.key, tt.value)
	}
	assert.Zero(t, store.Saves())
	assert.Equal(t, domain.DefaultConfig(), svc.Get())
}

func TestSettingsService_ProviderSwitchPicksDefaultModel(t *testing.T) {
	svc, _ := newTestSettings(t)

	require.NoError(t, svc.Set("llm_provider", "openai"))
	assert.Equal(t, "gpt-4o-mini", svc.Get().LLMModelID)

	require.NoError(t, svc.Set("embedding_provider", "ollama"))
	assert.Equal(t, "nomic-embed-text", svc.Get().EmbeddingModelID)
}

func TestSettingsService_SecretKeys(t *testing.T) {
	svc, _ := newTestSettings(t)
	assert.True(t, svc.Secret("llm_api_key"))
	assert.False(t, svc.Secret("llm_model_id"))
	assert.Equal(t, ":memory:", svc.Path())
}
