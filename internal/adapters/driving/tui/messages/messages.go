// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewCorpora lists corpora to chat with.
	ViewCorpora
	// ViewChat is the conversation with one corpus.
	ViewChat
	// ViewSettings is the settings editor.
	ViewSettings
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewCorpora:
		return "corpora"
	case ViewChat:
		return "chat"
	case ViewSettings:
		return "settings"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// CorporaLoaded carries the corpus list.
type CorporaLoaded struct {
	Corpora []domain.CorpusStats
	Err     error
}

// CorpusDeleted signals a corpus was deleted.
type CorpusDeleted struct {
	Name string
	Err  error
}

// CorpusSelected opens the chat view on a corpus.
type CorpusSelected struct {
	Name string
}

// CorpusMounted reports the outcome of opening a corpus for chat.
type CorpusMounted struct {
	Name    string
	History []domain.Message
	Err     error
}

// ChatStarted carries the event stream of a new answer, or the error that
// prevented it.
type ChatStarted struct {
	Stream int
	Events <-chan domain.ChatEvent
	Err    error
}

// ChatEvent carries one event of a running answer. Stream identifies the
// turn so events of a cancelled turn can be told apart.
type ChatEvent struct {
	Stream int
	Event  domain.ChatEvent
}

// ChatStreamClosed signals the answer channel was closed.
type ChatStreamClosed struct {
	Stream int
}

// HistoryCleared signals the stored conversation was removed.
type HistoryCleared struct {
	Err error
}

// SettingsLoaded carries every setting as key and display value.
type SettingsLoaded struct {
	Keys   []string
	Values map[string]string
	Err    error
}

// SettingSaved signals a setting was written.
type SettingSaved struct {
	Key string
	Err error
}

// SchedulerTick carries a fresh scheduler status.
type SchedulerTick struct {
	Status domain.SchedulerStatus
}
