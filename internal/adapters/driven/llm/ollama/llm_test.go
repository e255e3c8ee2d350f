package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

func collect(t *testing.T, ch <-chan driven.StreamEvent) (string, driven.StreamEvent) {
	t.Helper()
	var text string
	var last driven.StreamEvent
	for ev := range ch {
		if ev.Type == driven.StreamToken {
			text += ev.Token
			continue
		}
		last = ev
	}
	return text, last
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.2", req.Model)
		assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Hi there"},"done":true,"prompt_eval_count":12,"eval_count":3}`))
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	resp, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	}, driven.ChatOptions{Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
}

func TestChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		lines := []string{
			`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":5,"eval_count":2}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	ch, err := svc.ChatStream(context.Background(), []driven.ChatMessage{{Role: "user", Content: "hi"}}, driven.ChatOptions{})
	require.NoError(t, err)

	text, last := collect(t, ch)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, driven.StreamDone, last.Type)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 2, last.Usage.CompletionTokens)
}

func TestChatStream_ErrorLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"par"},"done":false}` + "\n" + `{"error":"model crashed"}` + "\n"))
	}))
	defer server.Close()

	ch, err := NewLLMService(LLMConfig{BaseURL: server.URL}).ChatStream(context.Background(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	text, last := collect(t, ch)
	assert.Equal(t, "par", text)
	assert.Equal(t, driven.StreamError, last.Type)
	assert.Contains(t, last.Err.Error(), "model crashed")
}

func TestChatStream_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"x"},"done":false}` + "\n"))
	}))
	defer server.Close()

	ch, err := NewLLMService(LLMConfig{BaseURL: server.URL}).ChatStream(context.Background(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	_, last := collect(t, ch)
	assert.Equal(t, driven.StreamError, last.Type)
}

func TestChatStream_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"slow"},"done":false}` + "\n"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ch, err := NewLLMService(LLMConfig{BaseURL: server.URL}).ChatStream(context.Background(), nil,
		driven.ChatOptions{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, last := collect(t, ch)
	assert.Equal(t, driven.StreamError, last.Type)
	assert.ErrorIs(t, last.Err, context.DeadlineExceeded)
}

func TestChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Chat(context.Background(), nil, driven.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
