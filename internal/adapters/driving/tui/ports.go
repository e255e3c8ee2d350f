// Package tui provides the interactive terminal chat for ragpro.
// It is a driving adapter: every action goes through a driving port.
package tui

import (
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI calls.
type Ports struct {
	// Corpus lists, deletes and describes corpora.
	Corpus driving.CorpusService

	// Chat answers questions against the selected corpus.
	Chat driving.ChatService

	// Settings is optional; without it the settings view is read-only empty.
	Settings driving.SettingsService

	// Scheduler is optional; it feeds the load indicator of the status bar.
	Scheduler driving.Scheduler
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
