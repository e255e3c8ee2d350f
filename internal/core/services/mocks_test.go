package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// fakeSampler replays samples; the last one repeats forever.
type fakeSampler struct {
	mu      sync.Mutex
	samples []domain.ResourceSample
	calls   int
	err     error
}

func newFakeSampler(pressures ...float64) *fakeSampler {
	s := &fakeSampler{}
	for _, p := range pressures {
		s.samples = append(s.samples, domain.ResourceSample{
			CPUPercent:      p,
			MemPercent:      p,
			AvailableMemory: 8 << 30,
		})
	}
	return s
}

func (s *fakeSampler) Sample(_ context.Context) (domain.ResourceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.ResourceSample{}, s.err
	}
	i := min(s.calls, len(s.samples)-1)
	s.calls++
	return s.samples[i], nil
}

func (s *fakeSampler) Device() domain.Device {
	return domain.DeviceCPU
}

func (s *fakeSampler) set(pressure float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = []domain.ResourceSample{{CPUPercent: pressure, MemPercent: pressure, AvailableMemory: 8 << 30}}
	s.calls = 0
}

// stubLLM answers with a function of the conversation and streams the
// answer word by word.
type stubLLM struct {
	mu       sync.Mutex
	answer   func(messages []driven.ChatMessage) string
	usage    *domain.TokenUsage
	err      error
	block    bool
	calls    int
	messages [][]driven.ChatMessage
}

func echoContextLLM() *stubLLM {
	return &stubLLM{answer: func(messages []driven.ChatMessage) string {
		if len(messages) > 0 && messages[0].Role == string(domain.RoleSystem) {
			if strings.Contains(messages[0].Content, "[NO CONTEXT]") {
				return "There is no relevant information in the knowledge base."
			}
			return "From the context: " + lastLine(messages[0].Content)
		}
		return "no system prompt"
	}}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func (l *stubLLM) record(messages []driven.ChatMessage) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.messages = append(l.messages, messages)
	if l.answer == nil {
		return "ok"
	}
	return l.answer(messages)
}

func (l *stubLLM) lastMessages() []driven.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return nil
	}
	return l.messages[len(l.messages)-1]
}

func (l *stubLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (*driven.ChatResponse, error) {
	text := l.record(messages)
	if l.err != nil {
		return nil, l.err
	}
	return &driven.ChatResponse{Content: text, Usage: l.usage}, nil
}

func (l *stubLLM) ChatStream(ctx context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (<-chan driven.StreamEvent, error) {
	text := l.record(messages)
	if l.err != nil {
		return nil, l.err
	}
	ch := make(chan driven.StreamEvent)
	go func() {
		defer close(ch)
		words := strings.SplitAfter(text, " ")
		for i, w := range words {
			if l.block && i == 1 {
				<-ctx.Done()
				ch <- driven.StreamEvent{Type: driven.StreamError, Err: ctx.Err()}
				return
			}
			select {
			case ch <- driven.StreamEvent{Type: driven.StreamToken, Token: w}:
			case <-ctx.Done():
				ch <- driven.StreamEvent{Type: driven.StreamError, Err: ctx.Err()}
				return
			}
		}
		ch <- driven.StreamEvent{Type: driven.StreamDone, Usage: l.usage}
	}()
	return ch, nil
}

func (l *stubLLM) ModelName() string            { return "stub-llm" }
func (l *stubLLM) Ping(_ context.Context) error { return nil }
func (l *stubLLM) Close() error                 { return nil }

// overlapReranker scores passages by how many query words they contain.
type overlapReranker struct {
	calls atomic.Int32
}

func (r *overlapReranker) Rerank(_ context.Context, query string, texts []string) ([]float64, error) {
	r.calls.Add(1)
	words := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		for _, w := range words {
			if strings.Contains(lower, strings.Trim(w, "?.,")) {
				scores[i]++
			}
		}
	}
	return scores, nil
}

func (r *overlapReranker) ModelName() string { return "overlap" }
func (r *overlapReranker) Close() error      { return nil }

// flakyEmbedder fails the first failures EmbedBatch calls.
type flakyEmbedder struct {
	driven.EmbeddingService
	failures atomic.Int32
	batches  atomic.Int32
	sizes    []int
	mu       sync.Mutex
}

var errFlaky = errors.New("embedder hiccup")

func (e *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches.Add(1)
	e.mu.Lock()
	e.sizes = append(e.sizes, len(texts))
	e.mu.Unlock()
	if e.failures.Load() > 0 {
		e.failures.Add(-1)
		return nil, errFlaky
	}
	return e.EmbeddingService.EmbedBatch(ctx, texts)
}
