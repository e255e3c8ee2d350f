// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/keymap"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// State represents the current application state for display.
type State string

const (
	StateReady     State = "ready"
	StateThinking  State = "thinking"
	StateError     State = "error"
	StateHelp      State = "help"
	StateAnswered  State = "answered"
	StateCancelled State = "cancelled"
)

// Bar displays the open corpus, the machine load and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	corpus  string
	load    *domain.SchedulerStatus
	stats   *domain.ChatStats
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages. The bar is updated via setters.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	parts := make([]string, 0, 3)
	if s.corpus != "" {
		parts = append(parts, s.styles.Subtitle.Render(s.corpus))
	}
	parts = append(parts, s.renderState())
	if s.load != nil {
		parts = append(parts, s.styles.LoadStyle(s.load.State).Render(
			fmt.Sprintf("cpu %.0f%% mem %.0f%%", s.load.Sample.CPUPercent, s.load.Sample.MemPercent)))
	}
	return strings.Join(parts, "  ")
}

func (s *Bar) renderState() string {
	switch s.state {
	case StateThinking:
		return s.styles.Muted.Render("Thinking...")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render("Error: " + s.message)
		}
		return s.styles.Error.Render("Error")
	case StateHelp:
		return s.styles.Normal.Render("Help")
	case StateCancelled:
		return s.styles.Warning.Render("Stopped")
	case StateAnswered:
		if s.stats != nil {
			return s.styles.Normal.Render(fmt.Sprintf("%.1fs  %.1f tok/s",
				s.stats.ElapsedSeconds, s.stats.TokensPerSecond))
		}
	case StateReady:
	}
	if s.message != "" {
		return s.styles.Muted.Render(s.message)
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) renderRight() string {
	var bindings []key.Binding
	if s.corpus != "" {
		bindings = s.keymap.ChatHelp()
	} else {
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetCorpus sets the corpus shown on the left. Empty hides it.
func (s *Bar) SetCorpus(name string) {
	s.corpus = name
}

// Corpus returns the corpus shown.
func (s *Bar) Corpus() string {
	return s.corpus
}

// SetLoad records the latest scheduler status.
func (s *Bar) SetLoad(st domain.SchedulerStatus) {
	s.load = &st
}

// SetStats records the statistics of the last answer.
func (s *Bar) SetStats(st domain.ChatStats) {
	s.stats = &st
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to default state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.stats = nil
}
