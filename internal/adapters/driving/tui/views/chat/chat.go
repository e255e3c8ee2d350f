// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/components/input"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/components/list"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/keymap"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// View is the conversation with one corpus.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	service driving.ChatService

	corpus   string
	mounted  bool
	messages []domain.Message

	input    *input.ChatInput
	sources  *list.SourceList
	viewport viewport.Model

	// showSources moves focus from the input to the source list.
	showSources bool

	// stream numbers answers so late events of a stopped one are dropped.
	stream    int
	streaming bool
	events    <-chan domain.ChatEvent
	cancel    context.CancelFunc
	partial   strings.Builder
	stage     string

	last *domain.ChatResult
	err  error

	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, service driving.ChatService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:   s,
		keymap:   km,
		service:  service,
		input:    input.NewChatInput(s),
		sources:  list.NewSourceList(s),
		viewport: viewport.New(80, 16),
	}
}

// Init starts the input cursor.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Open switches the view to corpus and loads it for chat.
func (v *View) Open(corpus string) tea.Cmd {
	v.Close()
	v.corpus = corpus
	v.messages = nil
	v.last = nil
	v.err = nil
	v.input.Reset()
	v.sources.SetSources(nil)
	v.showSources = false
	v.refresh()

	return tea.Batch(v.input.Focus(), v.mount(corpus))
}

func (v *View) mount(corpus string) tea.Cmd {
	svc := v.service
	return func() tea.Msg {
		ctx := context.Background()
		if err := svc.Mount(ctx, corpus); err != nil {
			return messages.CorpusMounted{Name: corpus, Err: err}
		}
		history, err := svc.History(ctx, corpus)
		return messages.CorpusMounted{Name: corpus, History: history, Err: err}
	}
}

// Close stops a running answer and releases the corpus.
func (v *View) Close() {
	v.stop()
	if v.streaming {
		// Events of the abandoned answer are read until the stream ends.
		go drain(v.events)
		v.streaming = false
		v.events = nil
		v.stream++
	}
	if v.mounted {
		v.service.Unmount(v.corpus)
		v.mounted = false
	}
}

func (v *View) stop() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *View) ask(req domain.ChatRequest) tea.Cmd {
	v.stream++
	v.streaming = true
	v.partial.Reset()
	v.stage = ""
	v.err = nil
	v.messages = append(v.messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   domain.ComposeQuery(req.Message, req.QuotedText),
		CreatedAt: time.Now(),
	})
	v.refresh()

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	stream, svc, corpus := v.stream, v.service, v.corpus
	return func() tea.Msg {
		events, err := svc.Chat(ctx, corpus, req)
		return messages.ChatStarted{Stream: stream, Events: events, Err: err}
	}
}

func drain(events <-chan domain.ChatEvent) {
	if events == nil {
		return
	}
	for range events {
	}
}

// waitForEvent reads the next event of an answer.
func waitForEvent(stream int, events <-chan domain.ChatEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return messages.ChatStreamClosed{Stream: stream}
		}
		return messages.ChatEvent{Stream: stream, Event: ev}
	}
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CorpusMounted:
		if msg.Name != v.corpus {
			return v, nil
		}
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.mounted = true
			v.messages = msg.History
		}
		v.refresh()
		return v, nil

	case messages.ChatStarted:
		if msg.Stream != v.stream || !v.streaming {
			go drain(msg.Events)
			return v, nil
		}
		if msg.Err != nil {
			v.finish(&domain.ChatResult{Err: msg.Err})
			return v, nil
		}
		v.events = msg.Events
		return v, waitForEvent(msg.Stream, msg.Events)

	case messages.ChatEvent:
		if msg.Stream != v.stream || !v.streaming {
			return v, nil
		}
		return v, v.handleEvent(msg)

	case messages.ChatStreamClosed:
		if msg.Stream == v.stream && v.streaming {
			v.finish(&domain.ChatResult{FullText: v.partial.String(), Cancelled: true})
		}
		return v, nil

	case messages.HistoryCleared:
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.messages = nil
			v.last = nil
			v.sources.SetSources(nil)
		}
		v.refresh()
		return v, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}
	return v, nil
}

func (v *View) handleEvent(msg messages.ChatEvent) tea.Cmd {
	ev := msg.Event
	switch ev.Type {
	case domain.ChatEventToken:
		v.partial.WriteString(ev.Token)
	case domain.ChatEventStage:
		if ev.Stage != nil {
			v.stage = fmt.Sprintf("%s: %d candidates in %s",
				ev.Stage.Name, ev.Stage.Candidates, ev.Stage.Elapsed.Round(time.Millisecond))
		}
	case domain.ChatEventDone:
		res := ev.Result
		if res == nil {
			res = &domain.ChatResult{FullText: v.partial.String(), Err: domain.ErrProviderFailure}
		}
		v.finish(res)
		return nil
	}
	v.refresh()
	return waitForEvent(msg.Stream, v.events)
}

// finish records the outcome of the running answer. The waiter is not
// renewed so the goroutine reading the stream ends here.
func (v *View) finish(res *domain.ChatResult) {
	v.streaming = false
	v.events = nil
	v.stop()
	v.last = res
	v.stage = ""

	msg := domain.Message{
		Role:      domain.RoleAssistant,
		Content:   res.FullText,
		Sources:   res.Sources,
		CreatedAt: time.Now(),
	}
	switch {
	case res.Err != nil:
		v.err = res.Err
		msg.Error = res.Err.Error()
	case res.Cancelled:
		msg.Error = "stopped"
	default:
		stats := res.Stats
		msg.Stats = &stats
	}
	v.messages = append(v.messages, msg)
	v.sources.SetSources(res.Sources)
	v.partial.Reset()
	v.refresh()
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Back):
		if v.showSources {
			v.showSources = false
			return v, v.input.Focus()
		}
		if v.streaming {
			v.stop()
			return v, nil
		}
		v.Close()
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewCorpora} }

	case keymap.Matches(k, v.keymap.Stop):
		v.stop()
		return v, nil

	case keymap.Matches(k, v.keymap.Clear):
		if v.streaming {
			return v, nil
		}
		svc, corpus := v.service, v.corpus
		return v, func() tea.Msg {
			return messages.HistoryCleared{Err: svc.ClearHistory(context.Background(), corpus)}
		}

	case keymap.Matches(k, v.keymap.Sources):
		if v.sources.Count() == 0 {
			return v, nil
		}
		v.showSources = !v.showSources
		if v.showSources {
			v.input.Blur()
			return v, nil
		}
		return v, v.input.Focus()

	case k == "pgup" || k == "pgdown":
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	if v.showSources {
		if keymap.Matches(k, v.keymap.Select) {
			if src := v.sources.SelectedSource(); src != nil {
				v.input.SetQuote(src.TextExcerpt)
			}
			v.showSources = false
			return v, v.input.Focus()
		}
		v.sources.Update(msg)
		return v, nil
	}

	if keymap.Matches(k, v.keymap.Send) {
		question := v.input.Value()
		if question == "" || v.streaming || !v.mounted {
			return v, nil
		}
		req := domain.ChatRequest{Message: question, QuotedText: v.input.Quote()}
		v.input.Reset()
		return v, v.ask(req)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// refresh re-renders the transcript into the viewport.
func (v *View) refresh() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

func (v *View) renderTranscript() string {
	var b strings.Builder
	if len(v.messages) == 0 && !v.streaming {
		b.WriteString(v.styles.Muted.Render("Ask anything about " + v.corpus + "."))
		return b.String()
	}
	for _, m := range v.messages {
		b.WriteString(v.renderMessage(m))
		b.WriteString("\n\n")
	}
	if v.streaming {
		b.WriteString(v.styles.Assistant.Render("assistant"))
		b.WriteString("\n")
		if v.stage != "" {
			b.WriteString(v.styles.Muted.Render("(" + v.stage + ")"))
			b.WriteString("\n")
		}
		if v.partial.Len() == 0 {
			b.WriteString(v.styles.Muted.Render("..."))
		} else {
			b.WriteString(v.partial.String())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *View) renderMessage(m domain.Message) string {
	var b strings.Builder
	if m.Role == domain.RoleUser {
		b.WriteString(v.styles.User.Render("you"))
	} else {
		b.WriteString(v.styles.Assistant.Render("assistant"))
	}
	b.WriteString("\n")
	if m.Content != "" {
		b.WriteString(m.Content)
	}
	if m.Error != "" {
		if m.Content != "" {
			b.WriteString("\n")
		}
		b.WriteString(v.styles.Error.Render("(" + m.Error + ")"))
	}
	if len(m.Sources) > 0 {
		names := make([]string, 0, len(m.Sources))
		for _, s := range m.Sources {
			names = append(names, s.FileName)
		}
		b.WriteString("\n")
		b.WriteString(v.styles.Source.Render("sources: " + strings.Join(names, ", ")))
	}
	return b.String()
}

// View renders the conversation.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render(v.corpus))
	b.WriteString("\n\n")
	b.WriteString(v.viewport.View())
	b.WriteString("\n\n")
	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error [%s]: %v", domain.Kind(v.err), v.err)))
		if remedy := domain.Remedy(v.err); remedy != "" {
			b.WriteString("\n" + v.styles.Muted.Render("  -> "+remedy))
		}
		b.WriteString("\n")
	}
	if v.showSources {
		b.WriteString(v.sources.View())
		b.WriteString("\n")
		b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Quote  [Esc] Close"))
		return b.String()
	}
	b.WriteString(v.input.View())
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	v.viewport.Height = max(height-8, 3)
	v.input.SetWidth(width)
	v.sources.SetDimensions(width, max(height/2, 4))
	v.ready = true
	v.refresh()
}

// Corpus returns the open corpus.
func (v *View) Corpus() string {
	return v.corpus
}

// Streaming reports whether an answer is being generated.
func (v *View) Streaming() bool {
	return v.streaming
}

// LastResult returns the outcome of the latest answer, or nil.
func (v *View) LastResult() *domain.ChatResult {
	return v.last
}

// Err returns the latest error shown by the view.
func (v *View) Err() error {
	return v.err
}
