package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

var chatLog = logger.For("chat")

// chatBuffer is the capacity of a chat event stream.
const chatBuffer = 64

// defaultRAGPrompt is used when no prompt store is configured.
const defaultRAGPrompt = `Answer the question using ONLY the context below. If the context does not contain the answer, say so.

Context:
%s`

// defaultEmptyPrompt replaces the context when retrieval found nothing.
const defaultEmptyPrompt = `[NO CONTEXT]
Nothing in the knowledge base matched the question. Say that there is no relevant information in the knowledge base.`

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithPrompts loads system prompts from a store.
func WithPrompts(p driven.PromptStore) ChatOption {
	return func(s *ChatService) {
		s.prompts = p
	}
}

// WithHistory persists turns to a message log.
func WithHistory(h driven.MessageLog) ChatOption {
	return func(s *ChatService) {
		s.history = h
	}
}

// ChatService answers questions grounded in mounted corpora.
// Engines are mounted lazily and re-mounted after a commit.
type ChatService struct {
	store   driven.CorpusStore
	rt      Runtime
	locks   *CorpusLocks
	indexes IndexFactory
	prompts driven.PromptStore
	history driven.MessageLog
	now     func() time.Time

	mu      sync.Mutex
	engines map[string]*Engine

	turns sync.WaitGroup
}

// NewChatService creates a chat service over a corpus store.
func NewChatService(store driven.CorpusStore, rt Runtime, locks *CorpusLocks, indexes IndexFactory, opts ...ChatOption) *ChatService {
	if locks == nil {
		locks = NewCorpusLocks()
	}
	s := &ChatService{
		store:   store,
		rt:      rt,
		locks:   locks,
		indexes: indexes,
		now:     time.Now,
		engines: make(map[string]*Engine),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount loads a corpus into memory. The read lock is held only while the
// snapshot is loaded, so builds may commit while the engine serves chats.
func (s *ChatService) Mount(ctx context.Context, corpus string) error {
	_, err := s.mount(ctx, corpus)
	return err
}

func (s *ChatService) mount(ctx context.Context, corpus string) (*Engine, error) {
	if err := domain.ValidateCorpusName(corpus); err != nil {
		return nil, err
	}
	if s.rt.Embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	unlock, err := s.locks.read(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	defer unlock()

	gen := s.locks.Generation(corpus)
	snap, err := s.store.Open(ctx, corpus)
	if err != nil {
		return nil, err
	}
	defer snap.Close() //nolint:errcheck // read-only snapshot

	engine, err := mountEngine(ctx, snap, s.rt.Embedder, s.indexes, s.rt.Config.EnableBM25)
	if err != nil {
		return nil, err
	}
	engine.generation = gen

	s.mu.Lock()
	old := s.engines[corpus]
	s.engines[corpus] = engine
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	chatLog.Info("mounted %s: %d chunks, dim %d", corpus, engine.Len(), snap.Descriptor.VectorDim)
	return engine, nil
}

// Unmount drops a mounted engine.
func (s *ChatService) Unmount(corpus string) {
	s.mu.Lock()
	e := s.engines[corpus]
	delete(s.engines, corpus)
	s.mu.Unlock()
	if e != nil {
		_ = e.Close()
	}
}

// engine returns a current engine for corpus, re-mounting a stale one.
func (s *ChatService) engine(ctx context.Context, corpus string) (*Engine, error) {
	s.mu.Lock()
	e := s.engines[corpus]
	s.mu.Unlock()
	if e != nil && e.generation == s.locks.Generation(corpus) {
		return e, nil
	}
	if e != nil {
		chatLog.Debug("%s changed since mount, re-mounting", corpus)
	}
	return s.mount(ctx, corpus)
}

// Chat streams one grounded answer. Mount errors are returned directly;
// everything after retrieval starts is reported on the terminal event.
func (s *ChatService) Chat(ctx context.Context, corpus string, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}
	if s.rt.LLM == nil {
		return nil, domain.ErrLLMUnavailable
	}
	engine, err := s.engine(ctx, corpus)
	if err != nil {
		return nil, err
	}

	history := req.History
	if history == nil && s.history != nil {
		if history, err = s.history.Load(ctx, corpus); err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
	}

	out := make(chan domain.ChatEvent, chatBuffer)
	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		defer close(out)
		t := &turn{
			ChatService: s,
			engine:      engine,
			corpus:      corpus,
			query:       domain.ComposeQuery(req.Message, req.QuotedText),
			history:     lastN(history, s.rt.Config.HistoryLimit),
			out:         out,
			started:     s.now(),
		}
		res := t.run(ctx)
		t.persist(res)
		t.finish(ctx, res)
	}()
	return out, nil
}

// Wait blocks until every streaming turn has finished.
func (s *ChatService) Wait() {
	s.turns.Wait()
}

// History returns the stored messages of a corpus.
func (s *ChatService) History(ctx context.Context, corpus string) ([]domain.Message, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Load(ctx, corpus)
}

// ClearHistory removes the stored messages of a corpus.
func (s *ChatService) ClearHistory(ctx context.Context, corpus string) error {
	if s.history == nil {
		return nil
	}
	return s.history.Clear(ctx, corpus)
}

func lastN(msgs []domain.Message, n int) []domain.Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

// turn is one question and its streamed answer.
type turn struct {
	*ChatService
	engine  *Engine
	corpus  string
	query   string
	history []domain.Message
	out     chan<- domain.ChatEvent
	started time.Time
}

func (t *turn) run(ctx context.Context) *domain.ChatResult {
	res := &domain.ChatResult{}
	cfg := t.rt.Config

	found, err := t.engine.retrieve(ctx, t.query, cfg, t.rt.Embedder, t.rt.Reranker)
	if err != nil {
		return t.fail(ctx, res, err)
	}
	if found.stage != nil {
		res.Stats.RerankCandidates = found.stage.Candidates
		res.Stats.RerankSeconds = found.stage.Elapsed.Seconds()
		t.send(ctx, domain.ChatEvent{Type: domain.ChatEventStage, Stage: found.stage})
	}
	for _, rc := range found.chunks {
		res.Sources = append(res.Sources, domain.SourceFrom(rc))
	}

	messages, err := t.messages(found.chunks)
	if err != nil {
		return t.fail(ctx, res, err)
	}

	timeout := cfg.LLMTimeout()
	if timeout <= 0 {
		timeout = domain.DefaultLLMTimeout * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stream, err := t.rt.LLM.ChatStream(genCtx, messages, driven.ChatOptions{
		Temperature: cfg.Temperature,
		Timeout:     timeout,
	})
	if err != nil {
		return t.fail(ctx, res, providerError("starting generation", err))
	}

	var text strings.Builder
	var usage *domain.TokenUsage
	for ev := range stream {
		switch ev.Type {
		case driven.StreamToken:
			text.WriteString(ev.Token)
			t.send(ctx, domain.ChatEvent{Type: domain.ChatEventToken, Token: ev.Token})
		case driven.StreamDone:
			usage = ev.Usage
		case driven.StreamError:
			err = ev.Err
		}
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return t.fail(ctx, res, providerError("generation", err))
	}

	res.FullText = text.String()
	res.Stats = t.stats(res.Stats, messages, res.FullText, usage)
	return res
}

// send forwards a streamed event unless the caller has gone away.
func (t *turn) send(ctx context.Context, ev domain.ChatEvent) {
	select {
	case t.out <- ev:
	case <-ctx.Done():
	}
}

// finish delivers the done event. Once ctx is cancelled it is dropped if
// the stream buffer is full.
func (t *turn) finish(ctx context.Context, res *domain.ChatResult) {
	ev := domain.ChatEvent{Type: domain.ChatEventDone, Result: res}
	select {
	case t.out <- ev:
		return
	default:
	}
	t.send(ctx, ev)
}

func (t *turn) fail(ctx context.Context, res *domain.ChatResult, err error) *domain.ChatResult {
	res.FullText = ""
	res.Stats.ElapsedSeconds = t.now().Sub(t.started).Seconds()
	cancelled := errors.Is(err, domain.ErrCancelled) || (ctx.Err() != nil && errors.Is(err, context.Canceled))
	if cancelled {
		res.Cancelled = true
		res.Sources = nil
		res.Err = fmt.Errorf("%w: %w", domain.ErrCancelled, context.Canceled)
		chatLog.Info("%s: chat cancelled", t.corpus)
		return res
	}
	res.Err = err
	chatLog.Error("%s: %v", t.corpus, err)
	return res
}

// messages assembles the system prompt, trimmed history and question.
func (t *turn) messages(chunks []domain.RetrievedChunk) ([]driven.ChatMessage, error) {
	var system string
	if len(chunks) == 0 {
		p, err := t.prompt(driven.PromptEmptyContext, defaultEmptyPrompt)
		if err != nil {
			return nil, err
		}
		system = p
	} else {
		p, err := t.prompt(driven.PromptRAGSystem, defaultRAGPrompt)
		if err != nil {
			return nil, err
		}
		block := contextBlock(chunks)
		if strings.Contains(p, "%s") {
			system = fmt.Sprintf(p, block)
		} else {
			system = p + "\n\n" + block
		}
	}

	msgs := make([]driven.ChatMessage, 0, len(t.history)+2)
	msgs = append(msgs, driven.ChatMessage{Role: string(domain.RoleSystem), Content: system})
	for _, m := range t.history {
		if m.Error != "" || m.Content == "" {
			continue
		}
		msgs = append(msgs, driven.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, driven.ChatMessage{Role: string(domain.RoleUser), Content: t.query})
	return msgs, nil
}

func (t *turn) prompt(name, fallback string) (string, error) {
	if t.prompts == nil {
		return fallback, nil
	}
	p, err := t.prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("loading prompt %s: %w", name, err)
	}
	return p, nil
}

// contextBlock numbers the retrieved passages for the system prompt.
func contextBlock(chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s", i+1, c.FileName, c.Content)
	}
	return b.String()
}

// stats fills timings and token counts. Provider usage wins over estimates.
func (t *turn) stats(st domain.ChatStats, messages []driven.ChatMessage, text string, usage *domain.TokenUsage) domain.ChatStats {
	st.ElapsedSeconds = t.now().Sub(t.started).Seconds()
	if usage != nil && (usage.PromptTokens > 0 || usage.CompletionTokens > 0) {
		st.PromptTokens = usage.PromptTokens
		st.CompletionTokens = usage.CompletionTokens
	} else {
		prompt := 0
		for _, m := range messages {
			prompt += domain.EstimateTokens(m.Content)
		}
		st.PromptTokens = prompt
		st.CompletionTokens = domain.EstimateTokens(text)
		st.Estimated = true
	}
	if st.ElapsedSeconds > 0 {
		st.TokensPerSecond = float64(st.CompletionTokens) / st.ElapsedSeconds
	}
	return st
}

// persist appends the turn to the message log. Cancelled turns leave no
// trace; failed turns are logged with the error on the assistant message.
func (t *turn) persist(res *domain.ChatResult) {
	if res.Cancelled || t.ChatService.history == nil {
		return
	}
	now := t.now()
	user := domain.Message{Role: domain.RoleUser, Content: t.query, CreatedAt: now}
	reply := domain.Message{Role: domain.RoleAssistant, Content: res.FullText, CreatedAt: now}
	if res.Err != nil {
		reply.Error = res.Err.Error()
	} else {
		stats := res.Stats
		reply.Sources = res.Sources
		reply.Stats = &stats
	}
	// The request context may already be done; the turn is still recorded.
	if err := t.ChatService.history.Append(context.Background(), t.corpus, user, reply); err != nil {
		chatLog.Warn("%s: saving history: %v", t.corpus, err)
	}
}
