package tui

import (
	"context"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

type mockCorpusService struct {
	list []domain.CorpusStats
}

func (m *mockCorpusService) List(context.Context) ([]domain.CorpusStats, error) {
	return m.list, nil
}

func (m *mockCorpusService) Stats(_ context.Context, name string) (*domain.CorpusStats, error) {
	return &domain.CorpusStats{Name: name}, nil
}

func (m *mockCorpusService) Manifest(context.Context, string) (*domain.Manifest, error) {
	return &domain.Manifest{}, nil
}

func (m *mockCorpusService) Create(context.Context, string) error         { return nil }
func (m *mockCorpusService) Delete(context.Context, string) error         { return nil }
func (m *mockCorpusService) Rename(context.Context, string, string) error { return nil }

type mockChatService struct {
	mu        sync.Mutex
	mounted   []string
	unmounted []string
	answer    string
}

func (m *mockChatService) Mount(_ context.Context, corpus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounted = append(m.mounted, corpus)
	return nil
}

func (m *mockChatService) Unmount(corpus string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmounted = append(m.unmounted, corpus)
}

func (m *mockChatService) Chat(context.Context, string, domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	out := make(chan domain.ChatEvent, 2)
	out <- domain.ChatEvent{Type: domain.ChatEventToken, Token: m.answer}
	out <- domain.ChatEvent{Type: domain.ChatEventDone, Result: &domain.ChatResult{
		FullText: m.answer,
		Stats:    domain.ChatStats{ElapsedSeconds: 1, TokensPerSecond: 3},
	}}
	close(out)
	return out, nil
}

func (m *mockChatService) History(context.Context, string) ([]domain.Message, error) {
	return nil, nil
}

func (m *mockChatService) ClearHistory(context.Context, string) error { return nil }

type mockScheduler struct {
	status domain.SchedulerStatus
}

func (m *mockScheduler) Start(context.Context) error    { return nil }
func (m *mockScheduler) Stop() error                    { return nil }
func (m *mockScheduler) Status() domain.SchedulerStatus { return m.status }
