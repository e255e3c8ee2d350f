// Package corpora provides the corpus picker view for the TUI.
package corpora

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// View lists corpora, most recently modified first.
type View struct {
	styles  *styles.Styles
	service driving.CorpusService

	corpora  []domain.CorpusStats
	selected int
	loading  bool
	err      error

	// confirming holds the corpus awaiting delete confirmation.
	confirming string

	width  int
	height int
	ready  bool
}

// NewView creates a new corpora view.
func NewView(s *styles.Styles, service driving.CorpusService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		service: service,
	}
}

// Init loads the corpus list.
func (v *View) Init() tea.Cmd {
	return v.load()
}

func (v *View) load() tea.Cmd {
	if v.service == nil {
		return nil
	}
	v.loading = true
	svc := v.service
	return func() tea.Msg {
		list, err := svc.List(context.Background())
		return messages.CorporaLoaded{Corpora: list, Err: err}
	}
}

func (v *View) remove(name string) tea.Cmd {
	svc := v.service
	return func() tea.Msg {
		return messages.CorpusDeleted{Name: name, Err: svc.Delete(context.Background(), name)}
	}
}

// Update handles messages for the corpora view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CorporaLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.corpora = msg.Corpora
		}
		if v.selected >= len(v.corpora) {
			v.selected = max(len(v.corpora)-1, 0)
		}
		return v, nil

	case messages.CorpusDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		return v, v.load()

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.confirming != "" {
		name := v.confirming
		v.confirming = ""
		if s := msg.String(); s == "y" || s == "Y" {
			return v, v.remove(name)
		}
		return v, nil
	}

	switch msg.String() {
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.corpora)-1 {
			v.selected++
		}
	case "r":
		return v, v.load()
	case "d", "delete":
		if c := v.SelectedCorpus(); c != nil {
			v.confirming = c.Name
		}
	case "enter":
		if c := v.SelectedCorpus(); c != nil {
			name := c.Name
			return v, func() tea.Msg { return messages.CorpusSelected{Name: name} }
		}
	}
	return v, nil
}

// View renders the corpus list.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Corpora"))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.corpora) == 0:
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	case len(v.corpora) == 0:
		b.WriteString(v.styles.Muted.Render("No corpora yet. Build one with 'ragpro build <name> <dir>'."))
		b.WriteString("\n")
	}

	for i := range v.corpora {
		b.WriteString(v.renderCorpus(i, &v.corpora[i]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	}
	if v.confirming != "" {
		b.WriteString(v.styles.Warning.Render(fmt.Sprintf("Delete %s and its conversation? [y/N]", v.confirming)))
		return b.String()
	}
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Chat  [d] Delete  [r] Reload  [Esc] Back"))
	return b.String()
}

func (v *View) renderCorpus(index int, c *domain.CorpusStats) string {
	detail := fmt.Sprintf("%d files, %d chunks, %s, %s", c.FileCount, c.ChunkCount,
		humanize.Bytes(uint64(max(c.BytesOnDisk, 0))), humanize.Time(c.ModifiedAt))
	if index == v.selected {
		return "> " + v.styles.Subtitle.Render(c.Name) + "  " + v.styles.Muted.Render(detail)
	}
	return "  " + v.styles.Normal.Render(c.Name) + "  " + v.styles.Muted.Render(detail)
}

// SelectedCorpus returns the highlighted corpus, or nil when the list is empty.
func (v *View) SelectedCorpus() *domain.CorpusStats {
	if v.selected < 0 || v.selected >= len(v.corpora) {
		return nil
	}
	return &v.corpora[v.selected]
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}
