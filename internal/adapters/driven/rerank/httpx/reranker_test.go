package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerank_TEIShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is bm25", req.Query)
		assert.Equal(t, []string{"a", "b", "c"}, req.Texts)
		_, _ = w.Write([]byte(`[{"index":2,"score":0.9},{"index":0,"score":0.5},{"index":1,"score":0.1}]`))
	}))
	defer server.Close()

	scores, err := New(Config{BaseURL: server.URL}).Rerank(context.Background(), "what is bm25", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.1, 0.9}, scores)
}

func TestRerank_JinaShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.8},{"index":0,"relevance_score":0.2}]}`))
	}))
	defer server.Close()

	scores, err := New(Config{BaseURL: server.URL, APIKey: "key"}).Rerank(context.Background(), "q", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.8}, scores)
}

func TestRerank_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"status", http.StatusServiceUnavailable, "loading", "status 503"},
		{"missing", http.StatusOK, `[{"index":0,"score":1}]`, "missing score for text 1"},
		{"range", http.StatusOK, `[{"index":9,"score":1}]`, "out of range"},
		{"garbage", http.StatusOK, `nope`, "decode response"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := New(Config{BaseURL: server.URL}).Rerank(context.Background(), "q", []string{"x", "y"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRerank_Empty(t *testing.T) {
	scores, err := New(Config{}).Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
	assert.Equal(t, DefaultModel, New(Config{}).ModelName())
}
