package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/components/status"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/keymap"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/views/chat"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/views/corpora"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/views/menu"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/views/settings"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// loadInterval is how often the status bar polls the scheduler.
const loadInterval = 2 * time.Second

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView     *menu.View
	corporaView  *corpora.View
	chatView     *chat.View
	settingsView *settings.View
	statusBar    *status.Bar

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		keymap:       km,
		menuView:     menu.NewView(s),
		corporaView:  corpora.NewView(s, ports.Corpus),
		chatView:     chat.NewView(s, km, ports.Chat),
		settingsView: settings.NewView(s, ports.Settings),
		statusBar:    status.NewBar(s, km),
		currentView:  messages.ViewMenu,
	}, nil
}

// WithContext sets the context for the app. Cancelling it quits the TUI.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.SetWindowTitle("ragpro"),
		a.chatView.Init(),
	}
	if a.ports.Scheduler != nil {
		cmds = append(cmds, a.pollLoad())
	}
	return tea.Batch(cmds...)
}

// pollLoad reads the scheduler status once, immediately.
func (a *App) pollLoad() tea.Cmd {
	sched := a.ports.Scheduler
	return func() tea.Msg {
		return messages.SchedulerTick{Status: sched.Status()}
	}
}

func (a *App) nextLoad() tea.Cmd {
	sched := a.ports.Scheduler
	return tea.Tick(loadInterval, func(time.Time) tea.Msg {
		return messages.SchedulerTick{Status: sched.Status()}
	})
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.CorpusSelected:
		a.currentView = messages.ViewChat
		a.statusBar.Clear()
		a.statusBar.SetCorpus(msg.Name)
		return a, a.chatView.Open(msg.Name)

	case messages.CorporaLoaded, messages.CorpusDeleted:
		a.corporaView, cmd = a.corporaView.Update(msg)
		return a, cmd

	case messages.CorpusMounted, messages.ChatStarted, messages.ChatEvent, messages.ChatStreamClosed,
		messages.HistoryCleared:
		// Chat messages go to the chat view even after leaving it so a
		// running answer drains.
		a.chatView, cmd = a.chatView.Update(msg)
		a.syncStatus()
		return a, cmd

	case messages.SettingsLoaded, messages.SettingSaved:
		a.settingsView, cmd = a.settingsView.Update(msg)
		return a, cmd

	case messages.SchedulerTick:
		a.statusBar.SetLoad(msg.Status)
		return a, a.nextLoad()

	case messages.ErrorOccurred:
		a.err = msg.Err
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(msg.Err.Error())
		return a, nil

	case messages.Quit:
		return a.quit()
	}

	return a, a.forward(msg)
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a.quit()
	}

	switch a.currentView {
	case messages.ViewHelp:
		if keymap.Matches(msg.String(), a.keymap.Back) || keymap.Matches(msg.String(), a.keymap.Help) {
			return a, a.switchTo(messages.ViewMenu)
		}
		if msg.String() == "q" {
			return a.quit()
		}
		return a, nil
	case messages.ViewMenu, messages.ViewCorpora:
		if keymap.Matches(msg.String(), a.keymap.Help) {
			return a, a.switchTo(messages.ViewHelp)
		}
	case messages.ViewChat, messages.ViewSettings:
	}

	cmd := a.forward(msg)
	if a.currentView == messages.ViewChat {
		a.syncStatus()
	}
	return a, cmd
}

// forward passes msg to the active view.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewCorpora:
		a.corporaView, cmd = a.corporaView.Update(msg)
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewSettings:
		a.settingsView, cmd = a.settingsView.Update(msg)
	case messages.ViewHelp:
	}
	return cmd
}

func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	switch view {
	case messages.ViewCorpora:
		a.statusBar.SetCorpus("")
		a.statusBar.Clear()
		return a.corporaView.Init()
	case messages.ViewSettings:
		a.settingsView.Reset()
		return a.settingsView.Init()
	case messages.ViewMenu:
		a.statusBar.SetCorpus("")
		a.statusBar.Clear()
	case messages.ViewChat, messages.ViewHelp:
	}
	return nil
}

// syncStatus mirrors the chat view state into the status bar.
func (a *App) syncStatus() {
	switch res := a.chatView.LastResult(); {
	case a.chatView.Streaming():
		a.statusBar.SetState(status.StateThinking)
	case a.chatView.Err() != nil:
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(domain.Kind(a.chatView.Err()))
	case res == nil:
		a.statusBar.SetState(status.StateReady)
	case res.Cancelled:
		a.statusBar.SetState(status.StateCancelled)
	default:
		a.statusBar.SetState(status.StateAnswered)
		a.statusBar.SetStats(res.Stats)
	}
}

func (a *App) quit() (tea.Model, tea.Cmd) {
	a.chatView.Close()
	return a, tea.Quit
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewCorpora:
		body = a.corporaView.View()
	case messages.ViewChat:
		body = a.chatView.View()
	case messages.ViewSettings:
		body = a.settingsView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.menuView.View()
	}
	return body + "\n\n" + a.statusBar.View()
}

func (a *App) viewHelp() string {
	return `Help

Navigation:
  j/k, ↑/↓    Move
  enter       Select
  esc         Back
  ctrl+c      Quit

Corpora:
  enter       Chat with the corpus
  d           Delete the corpus (asks first)
  r           Reload

Chat:
  enter       Send the question
  ctrl+x      Stop the answer
  ctrl+s      Show sources, enter quotes one into the next question
  ctrl+l      Clear the stored conversation
  pgup/pgdown Scroll

Settings:
  enter       Edit, enter again saves

[esc] back to menu`
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	a.chatView.Close()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	// The status bar takes two lines.
	body := max(height-2, 1)
	a.menuView.SetDimensions(width, body)
	a.corporaView.SetDimensions(width, body)
	a.chatView.SetDimensions(width, body)
	a.settingsView.SetDimensions(width, body)
	a.statusBar.SetWidth(width)
}
