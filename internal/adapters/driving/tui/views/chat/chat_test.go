package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

type fakeChat struct {
	mu        sync.Mutex
	mountErr  error
	chatErr   error
	history   []domain.Message
	events    []domain.ChatEvent
	requests  []domain.ChatRequest
	unmounted []string
	cleared   int
	block     bool
}

func (f *fakeChat) Mount(context.Context, string) error { return f.mountErr }

func (f *fakeChat) Unmount(corpus string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmounted = append(f.unmounted, corpus)
}

func (f *fakeChat) History(context.Context, string) ([]domain.Message, error) {
	return f.history, nil
}

func (f *fakeChat) ClearHistory(context.Context, string) error {
	f.cleared++
	return nil
}

func (f *fakeChat) Chat(ctx context.Context, _ string, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	out := make(chan domain.ChatEvent, len(f.events)+1)
	if f.block {
		go func() {
			defer close(out)
			out <- domain.ChatEvent{Type: domain.ChatEventToken, Token: "partial"}
			<-ctx.Done()
			out <- domain.ChatEvent{Type: domain.ChatEventDone, Result: &domain.ChatResult{
				FullText: "partial", Cancelled: true,
			}}
		}()
		return out, nil
	}
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out, nil
}

func answerEvents() []domain.ChatEvent {
	return []domain.ChatEvent{
		{Type: domain.ChatEventStage, Stage: &domain.StageInfo{Name: "rerank", Candidates: 8, Elapsed: time.Second}},
		{Type: domain.ChatEventToken, Token: "Hel"},
		{Type: domain.ChatEventToken, Token: "lo"},
		{Type: domain.ChatEventDone, Result: &domain.ChatResult{
			FullText: "Hello",
			Sources:  []domain.Source{{FileName: "a.md", ChunkID: "a-0", Score: 0.9, TextExcerpt: "alpha text"}},
			Stats:    domain.ChatStats{ElapsedSeconds: 1.5, TokensPerSecond: 4},
		}},
	}
}

func openView(t *testing.T, svc *fakeChat) *View {
	t.Helper()
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 40)
	require.NotNil(t, v.Open("papers"))
	v.Update(v.mount("papers")())
	return v
}

// runCmds runs cmd and feeds its messages back until no command is left.
func runCmds(t *testing.T, v *View, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 100, "command chain did not end")
		_, cmd = v.Update(cmd())
	}
}

func send(t *testing.T, v *View, text string) tea.Cmd {
	t.Helper()
	v.input.SetValue(text)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestView_OpenLoadsHistory(t *testing.T) {
	svc := &fakeChat{history: []domain.Message{
		{Role: domain.RoleUser, Content: "earlier question"},
		{Role: domain.RoleAssistant, Content: "earlier answer"},
	}}
	v := openView(t, svc)

	view := v.View()

	assert.Equal(t, "papers", v.Corpus())
	assert.True(t, v.mounted)
	assert.Contains(t, view, "earlier question")
	assert.Contains(t, view, "earlier answer")
}

func TestView_MountErrorShown(t *testing.T) {
	v := openView(t, &fakeChat{mountErr: domain.ErrDimensionMismatch})

	assert.False(t, v.mounted)
	assert.ErrorIs(t, v.Err(), domain.ErrDimensionMismatch)
	assert.Contains(t, v.View(), "Error [")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestView_StaleMountIgnored(t *testing.T) {
	v := openView(t, &fakeChat{})

	v.Update(messages.CorpusMounted{Name: "other", Err: domain.ErrMissingCorpus})

	assert.NoError(t, v.Err())
}

func TestView_AskStreamsAnswer(t *testing.T) {
	svc := &fakeChat{events: answerEvents()}
	v := openView(t, svc)

	runCmds(t, v, send(t, v, "what is alpha?"))

	require.Len(t, svc.requests, 1)
	assert.Equal(t, "what is alpha?", svc.requests[0].Message)
	assert.False(t, v.Streaming())
	require.NotNil(t, v.LastResult())
	assert.Equal(t, "Hello", v.LastResult().FullText)

	view := v.View()
	assert.Contains(t, view, "what is alpha?")
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "sources: a.md")
	assert.Empty(t, v.input.Value())
}

func TestView_EmptyQuestionIgnored(t *testing.T) {
	svc := &fakeChat{events: answerEvents()}
	v := openView(t, svc)

	cmd := send(t, v, "   ")

	assert.Nil(t, cmd)
	assert.Empty(t, svc.requests)
}

func TestView_ChatErrorRecorded(t *testing.T) {
	v := openView(t, &fakeChat{chatErr: domain.ErrLLMUnavailable})

	runCmds(t, v, send(t, v, "hi"))

	assert.False(t, v.Streaming())
	assert.ErrorIs(t, v.Err(), domain.ErrLLMUnavailable)
	require.Len(t, v.messages, 2)
	assert.Equal(t, domain.ErrLLMUnavailable.Error(), v.messages[1].Error)
}

func TestView_StopCancelsAnswer(t *testing.T) {
	svc := &fakeChat{block: true}
	v := openView(t, svc)

	_, wait := v.Update(send(t, v, "long question")())
	require.NotNil(t, wait)
	_, wait = v.Update(wait())
	require.NotNil(t, wait)
	assert.True(t, v.Streaming())
	assert.Contains(t, v.View(), "partial")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Nil(t, cmd)
	runCmds(t, v, wait)

	assert.False(t, v.Streaming())
	require.NotNil(t, v.LastResult())
	assert.True(t, v.LastResult().Cancelled)
	assert.Contains(t, v.View(), "(stopped)")
}

func TestView_StaleEventsDropped(t *testing.T) {
	v := openView(t, &fakeChat{})

	_, cmd := v.Update(messages.ChatEvent{Stream: 42, Event: domain.ChatEvent{Type: domain.ChatEventToken, Token: "x"}})

	assert.Nil(t, cmd)
	assert.Empty(t, v.messages)
}

func TestView_SourcesQuoteIntoInput(t *testing.T) {
	v := openView(t, &fakeChat{events: answerEvents()})
	runCmds(t, v, send(t, v, "q1"))

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.True(t, v.showSources)
	assert.Contains(t, v.View(), "Sources (1)")

	v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, v.showSources)
	assert.Equal(t, "alpha text", v.input.Quote())
}

func TestView_QuoteSentWithQuestion(t *testing.T) {
	svc := &fakeChat{events: answerEvents()}
	v := openView(t, svc)
	v.input.SetQuote("the passage")

	runCmds(t, v, send(t, v, "explain"))

	require.Len(t, svc.requests, 1)
	assert.Equal(t, "the passage", svc.requests[0].QuotedText)
	assert.Empty(t, v.input.Quote())
}

func TestView_ClearHistory(t *testing.T) {
	svc := &fakeChat{events: answerEvents()}
	v := openView(t, svc)
	runCmds(t, v, send(t, v, "q1"))

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	runCmds(t, v, cmd)

	assert.Equal(t, 1, svc.cleared)
	assert.Empty(t, v.messages)
	assert.Nil(t, v.LastResult())
}

func TestView_EscUnmountsAndGoesBack(t *testing.T) {
	svc := &fakeChat{}
	v := openView(t, svc)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewCorpora}, cmd())
	assert.Equal(t, []string{"papers"}, svc.unmounted)
	assert.False(t, v.mounted)
}
