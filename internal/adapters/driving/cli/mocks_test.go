package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

type mockBuilder struct {
	req domain.BuildRequest
	res *domain.BuildResult
	err error
}

func (m *mockBuilder) Build(_ context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	m.req = req
	return m.res, m.err
}

type mockFeed struct {
	events []domain.ProgressEvent
}

func (m *mockFeed) Subscribe(int) (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

type mockChat struct {
	mounted   []string
	unmounted []string
	requests  []domain.ChatRequest
	mountErr  error
	history   []domain.Message
	cleared   []string
	// answer is streamed token by token; result overrides the done payload.
	answer []string
	result *domain.ChatResult
}

func (m *mockChat) Mount(_ context.Context, corpus string) error {
	m.mounted = append(m.mounted, corpus)
	return m.mountErr
}

func (m *mockChat) Unmount(corpus string) {
	m.unmounted = append(m.unmounted, corpus)
}

func (m *mockChat) Chat(_ context.Context, _ string, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	m.requests = append(m.requests, req)
	out := make(chan domain.ChatEvent, len(m.answer)+1)
	for _, tok := range m.answer {
		out <- domain.ChatEvent{Type: domain.ChatEventToken, Token: tok}
	}
	res := m.result
	if res == nil {
		res = &domain.ChatResult{FullText: strings.Join(m.answer, "")}
	}
	out <- domain.ChatEvent{Type: domain.ChatEventDone, Result: res}
	close(out)
	return out, nil
}

func (m *mockChat) History(context.Context, string) ([]domain.Message, error) {
	return m.history, nil
}

func (m *mockChat) ClearHistory(_ context.Context, corpus string) error {
	m.cleared = append(m.cleared, corpus)
	return nil
}

type mockCorpus struct {
	list    []domain.CorpusStats
	stats   *domain.CorpusStats
	err     error
	created []string
	deleted []string
	renamed [][2]string
}

func (m *mockCorpus) List(context.Context) ([]domain.CorpusStats, error) {
	return m.list, m.err
}

func (m *mockCorpus) Stats(context.Context, string) (*domain.CorpusStats, error) {
	return m.stats, m.err
}

func (m *mockCorpus) Manifest(context.Context, string) (*domain.Manifest, error) {
	return &domain.Manifest{}, m.err
}

func (m *mockCorpus) Create(_ context.Context, name string) error {
	m.created = append(m.created, name)
	return m.err
}

func (m *mockCorpus) Delete(_ context.Context, name string) error {
	m.deleted = append(m.deleted, name)
	return m.err
}

func (m *mockCorpus) Rename(_ context.Context, oldName, newName string) error {
	m.renamed = append(m.renamed, [2]string{oldName, newName})
	return m.err
}

type mockSettings struct {
	values map[string]string
	keys   []string
}

func newMockSettings() *mockSettings {
	return &mockSettings{
		keys: []string{"chunk_size", "llm_api_key", "llm_model"},
		values: map[string]string{
			"chunk_size":  "512",
			"llm_api_key": "sk-abcdefghijklmnop",
			"llm_model":   "",
		},
	}
}

func (m *mockSettings) Get() domain.Config     { return domain.Config{} }
func (m *mockSettings) Keys() []string         { return m.keys }
func (m *mockSettings) Path() string           { return "/data/config.toml" }
func (m *mockSettings) Secret(key string) bool { return key == "llm_api_key" }

func (m *mockSettings) Value(key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", errors.New("unknown setting " + key)
	}
	return v, nil
}

func (m *mockSettings) Set(key, value string) error {
	if _, ok := m.values[key]; !ok {
		return domain.ErrInvalidInput
	}
	m.values[key] = value
	return nil
}

type mockWatch struct {
	corpus, source string
	err            error
}

func (m *mockWatch) Watch(_ context.Context, corpus, source string) error {
	m.corpus, m.source = corpus, source
	return m.err
}

type mockScheduler struct {
	status  domain.SchedulerStatus
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockScheduler) Status() domain.SchedulerStatus { return m.status }

// resetFlags restores flag variables, which persist between executions.
func resetFlags() {
	buildMode, buildYes, buildJSON = "append", false, false
	buildChunkSize, buildOverlap, buildHidden = 0, 0, false
	chatQuote, chatHistory, chatClear = "", false, false
	corpusJSON, corpusYes = false, false
	statusCheck = false
	verbose, dataDir = false, ""
}

// execute runs the root command with services installed and returns
// everything written to stdout and stderr.
func execute(t *testing.T, svc *Services, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	SetServices(svc)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		SetServices(&Services{})
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

type mockProviders struct {
	checks []domain.ProviderCheck
}

func (m *mockProviders) CheckProviders(_ context.Context) []domain.ProviderCheck {
	return m.checks
}
