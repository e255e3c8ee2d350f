package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("missing corpus service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{Chat: &mockChatService{}})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingCorpusService)
	})

	t.Run("missing chat service returns error", func(t *testing.T) {
		_, err := NewServer(&Ports{Corpus: &mockCorpusService{}})
		assert.ErrorIs(t, err, ErrMissingChatService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(validPorts())
		require.NoError(t, err)
		assert.Equal(t, DefaultVersion, server.version)
	})

	t.Run("version option", func(t *testing.T) {
		server, err := NewServer(validPorts(), WithVersion("1.2.3"))
		require.NoError(t, err)
		assert.Equal(t, "1.2.3", server.version)

		server, err = NewServer(validPorts(), WithVersion(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultVersion, server.version)
	})
}

func TestServer_RunHTTPStopsOnCancel(t *testing.T) {
	server, err := NewServer(validPorts())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.RunHTTP(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
