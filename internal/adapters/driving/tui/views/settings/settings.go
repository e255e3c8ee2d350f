// Package settings provides the settings editor view for the TUI.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// ErrNoSettingsService is reported when the view has nothing to edit.
var ErrNoSettingsService = errors.New("settings service not available")

// View lists every setting and edits one at a time.
type View struct {
	styles   *styles.Styles
	settings driving.SettingsService

	keys    []string
	values  map[string]string
	secrets map[string]bool
	err     error
	notice  string

	selected int
	editing  bool
	input    textinput.Model

	width  int
	height int
	ready  bool
}

// NewView creates a new settings view.
func NewView(s *styles.Styles, settings driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.CharLimit = 512

	return &View{
		styles:   s,
		settings: settings,
		values:   make(map[string]string),
		secrets:  make(map[string]bool),
		input:    ti,
	}
}

// Init loads the settings.
func (v *View) Init() tea.Cmd {
	return v.load()
}

func (v *View) load() tea.Cmd {
	svc := v.settings
	return func() tea.Msg {
		if svc == nil {
			return messages.SettingsLoaded{Err: ErrNoSettingsService}
		}
		keys := svc.Keys()
		values := make(map[string]string, len(keys))
		for _, k := range keys {
			val, err := svc.Value(k)
			if err != nil {
				return messages.SettingsLoaded{Err: fmt.Errorf("failed to read %s: %w", k, err)}
			}
			values[k] = val
		}
		return messages.SettingsLoaded{Keys: keys, Values: values}
	}
}

func (v *View) save(key, value string) tea.Cmd {
	svc := v.settings
	return func() tea.Msg {
		if svc == nil {
			return messages.SettingSaved{Key: key, Err: ErrNoSettingsService}
		}
		return messages.SettingSaved{Key: key, Err: svc.Set(key, value)}
	}
}

// Update handles messages for the settings view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.SettingsLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.keys = msg.Keys
		v.values = msg.Values
		for _, k := range msg.Keys {
			v.secrets[k] = v.settings != nil && v.settings.Secret(k)
		}
		if v.selected >= len(v.keys) {
			v.selected = max(len(v.keys)-1, 0)
		}
		return v, nil

	case messages.SettingSaved:
		if msg.Err != nil {
			v.err = msg.Err
			v.notice = ""
			return v, nil
		}
		v.err = nil
		v.notice = msg.Key + " saved"
		return v, v.load()

	case tea.KeyMsg:
		if v.editing {
			return v.handleEditKeys(msg)
		}
		return v.handleListKeys(msg)
	}

	return v, nil
}

func (v *View) handleListKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.keys)-1 {
			v.selected++
		}
	case "r":
		return v, v.load()
	case "enter":
		if len(v.keys) == 0 {
			return v, nil
		}
		key := v.keys[v.selected]
		v.editing = true
		v.notice = ""
		v.input.Reset()
		if v.secrets[key] {
			v.input.EchoMode = textinput.EchoPassword
			v.input.Placeholder = "new value"
		} else {
			v.input.EchoMode = textinput.EchoNormal
			v.input.SetValue(v.values[key])
			v.input.CursorEnd()
		}
		return v, v.input.Focus()
	}
	return v, nil
}

func (v *View) handleEditKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.stopEditing()
		return v, nil
	case "enter":
		key := v.keys[v.selected]
		value := strings.TrimSpace(v.input.Value())
		v.stopEditing()
		return v, v.save(key, value)
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) stopEditing() {
	v.editing = false
	v.input.Blur()
	v.input.Reset()
}

// View renders the settings list.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Settings"))
	b.WriteString("\n\n")

	if len(v.keys) == 0 && v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	width := 0
	for _, k := range v.keys {
		width = max(width, len(k))
	}
	for i, k := range v.keys {
		cursor := "  "
		if i == v.selected {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-*s  ", cursor, width, k)
		switch {
		case i == v.selected && v.editing:
			b.WriteString(v.styles.Subtitle.Render(line) + v.input.View())
		case i == v.selected:
			b.WriteString(v.styles.Subtitle.Render(line) + v.displayValue(k))
		default:
			b.WriteString(v.styles.Normal.Render(line) + v.displayValue(k))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	case v.notice != "":
		b.WriteString(v.styles.Success.Render(v.notice))
		b.WriteString("\n")
	}
	if v.settings != nil {
		b.WriteString(v.styles.Muted.Render("File: " + v.settings.Path()))
		b.WriteString("\n")
	}
	if v.editing {
		b.WriteString(v.styles.Help.Render("[Enter] Save  [Esc] Cancel"))
	} else {
		b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Edit  [r] Reload  [Esc] Back"))
	}
	return b.String()
}

func (v *View) displayValue(key string) string {
	val := v.values[key]
	if val == "" {
		return v.styles.Muted.Render("(not set)")
	}
	if v.secrets[key] {
		return v.styles.Muted.Render(MaskSecret(val))
	}
	return v.styles.Normal.Render(val)
}

// MaskSecret hides all but the ends of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.Width = max(width-30, 20)
	v.ready = true
}

// Editing reports whether a value is being edited.
func (v *View) Editing() bool {
	return v.editing
}

// Reset leaves edit mode and clears notices.
func (v *View) Reset() {
	v.stopEditing()
	v.err = nil
	v.notice = ""
}
