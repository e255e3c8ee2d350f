package mcp

import (
	"context"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// mockCorpusService is a mock implementation of driving.CorpusService.
type mockCorpusService struct {
	corpora  []domain.CorpusStats
	stats    *domain.CorpusStats
	manifest *domain.Manifest
	err      error
	asked    string
}

func (m *mockCorpusService) List(_ context.Context) ([]domain.CorpusStats, error) {
	return m.corpora, m.err
}

func (m *mockCorpusService) Stats(_ context.Context, name string) (*domain.CorpusStats, error) {
	m.asked = name
	return m.stats, m.err
}

func (m *mockCorpusService) Manifest(_ context.Context, name string) (*domain.Manifest, error) {
	m.asked = name
	return m.manifest, m.err
}

func (m *mockCorpusService) Create(_ context.Context, _ string) error {
	return m.err
}

func (m *mockCorpusService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockCorpusService) Rename(_ context.Context, _, _ string) error {
	return m.err
}

// mockChatService streams canned tokens followed by a result.
type mockChatService struct {
	tokens []string
	result *domain.ChatResult
	err    error
	req    domain.ChatRequest
}

func (m *mockChatService) Mount(_ context.Context, _ string) error {
	return m.err
}

func (m *mockChatService) Unmount(_ string) {}

func (m *mockChatService) Chat(_ context.Context, _ string, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.req = req
	ch := make(chan domain.ChatEvent, len(m.tokens)+1)
	for _, tok := range m.tokens {
		ch <- domain.ChatEvent{Type: domain.ChatEventToken, Token: tok}
	}
	ch <- domain.ChatEvent{Type: domain.ChatEventDone, Result: m.result}
	close(ch)
	return ch, nil
}

func (m *mockChatService) History(_ context.Context, _ string) ([]domain.Message, error) {
	return nil, m.err
}

func (m *mockChatService) ClearHistory(_ context.Context, _ string) error {
	return m.err
}

func validPorts() *Ports {
	return &Ports{Corpus: &mockCorpusService{}, Chat: &mockChatService{}}
}
