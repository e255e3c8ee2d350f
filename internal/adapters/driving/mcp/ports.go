package mcp

import (
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Corpus lists and describes corpora.
	Corpus driving.CorpusService

	// Chat answers questions against a corpus.
	Chat driving.ChatService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Corpus == nil {
		return ErrMissingCorpusService
	}
	if p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
