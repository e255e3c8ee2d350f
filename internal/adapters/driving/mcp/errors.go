// Package mcp provides an MCP (Model Context Protocol) server adapter for ragpro.
// It lets AI assistants list corpora and ask questions against them.
package mcp

import "errors"

var (
	// ErrMissingCorpusService is returned when the corpus service is not provided.
	ErrMissingCorpusService = errors.New("mcp: corpus service is required")

	// ErrMissingChatService is returned when the chat service is not provided.
	ErrMissingChatService = errors.New("mcp: chat service is required")
)
