// Package input provides text input components for the TUI.
package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
)

// maxQuestionLength bounds a single question typed in the TUI.
const maxQuestionLength = 4000

// ChatInput is the question line of the chat view. It can carry a quoted
// passage that is sent along with the next question.
type ChatInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	quote     string
	width     int
}

// NewChatInput creates a focused chat input.
func NewChatInput(s *styles.Styles) *ChatInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question..."
	ti.Focus()
	ti.CharLimit = maxQuestionLength
	ti.Width = 60
	ti.Cursor.SetMode(cursor.CursorStatic)

	return &ChatInput{
		textinput: ti,
		styles:    s,
		width:     60,
	}
}

// Init implements the component contract. The cursor does not blink.
func (c *ChatInput) Init() tea.Cmd {
	return nil
}

// Update handles input messages.
func (c *ChatInput) Update(msg tea.Msg) (*ChatInput, tea.Cmd) {
	var cmd tea.Cmd
	c.textinput, cmd = c.textinput.Update(msg)
	return c, cmd
}

// View renders the input with the pending quote above it.
func (c *ChatInput) View() string {
	label := c.styles.User.Render("> ")
	line := lipgloss.JoinHorizontal(lipgloss.Top, label, c.styles.InputField.Render(c.textinput.View()))
	if c.quote == "" {
		return line
	}
	quote := strings.Join(strings.Fields(c.quote), " ")
	if limit := c.width - 12; limit > 10 && len(quote) > limit {
		quote = quote[:limit-3] + "..."
	}
	return c.styles.Muted.Render("quoting: "+quote) + "\n" + line
}

// Value returns the trimmed question.
func (c *ChatInput) Value() string {
	return strings.TrimSpace(c.textinput.Value())
}

// SetValue sets the input value.
func (c *ChatInput) SetValue(value string) {
	c.textinput.SetValue(value)
}

// Quote returns the pending quoted passage.
func (c *ChatInput) Quote() string {
	return c.quote
}

// SetQuote attaches a passage to the next question.
func (c *ChatInput) SetQuote(quote string) {
	c.quote = strings.TrimSpace(quote)
}

// Focus sets focus on the input.
func (c *ChatInput) Focus() tea.Cmd {
	return c.textinput.Focus()
}

// Blur removes focus from the input.
func (c *ChatInput) Blur() {
	c.textinput.Blur()
}

// Focused returns whether the input is focused.
func (c *ChatInput) Focused() bool {
	return c.textinput.Focused()
}

// SetWidth sets the width of the input.
func (c *ChatInput) SetWidth(width int) {
	c.width = width
	c.textinput.Width = max(width-8, 20)
}

// Width returns the current width.
func (c *ChatInput) Width() int {
	return c.width
}

// Reset clears the question and the quote.
func (c *ChatInput) Reset() {
	c.textinput.Reset()
	c.quote = ""
}
