package memory

import (
	"context"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure MessageLog implements the interface.
var _ driven.MessageLog = (*MessageLog)(nil)

// MessageLog keeps chat histories in memory.
type MessageLog struct {
	mu   sync.RWMutex
	logs map[string][]domain.Message
}

// NewMessageLog creates an empty message log.
func NewMessageLog() *MessageLog {
	return &MessageLog{logs: make(map[string][]domain.Message)}
}

// Load returns a copy of the stored messages.
func (l *MessageLog) Load(_ context.Context, corpus string) ([]domain.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Message(nil), l.logs[corpus]...), nil
}

// Append adds messages.
func (l *MessageLog) Append(_ context.Context, corpus string, msgs ...domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs[corpus] = append(l.logs[corpus], msgs...)
	return nil
}

// Clear removes the history of a corpus.
func (l *MessageLog) Clear(_ context.Context, corpus string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.logs, corpus)
	return nil
}

// Rename moves a history to a new corpus name.
func (l *MessageLog) Rename(_ context.Context, oldName, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if msgs, ok := l.logs[oldName]; ok {
		l.logs[newName] = msgs
		delete(l.logs, oldName)
	}
	return nil
}
