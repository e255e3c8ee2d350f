// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// SourceList displays the passages an answer was based on.
type SourceList struct {
	sources  []domain.Source
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the source list.
func (r *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the source list.
func (r *SourceList) View() string {
	if len(r.sources) == 0 {
		return r.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(r.sources)+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(r.sources))), "")

	// Each source takes two lines.
	visible := max((r.height-2)/2, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.sources))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderSource(i, &r.sources[i]))
	}
	return strings.Join(lines, "\n")
}

func (r *SourceList) renderSource(index int, src *domain.Source) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	name := truncate(src.FileName, max(r.width-20, 10))
	score := fmt.Sprintf("%.3f", src.Score)

	var title string
	if index == r.selected {
		title = r.styles.Selected.Render(fmt.Sprintf("%s[%d] %s  %s", indicator, index+1, name, score))
	} else {
		title = r.styles.Normal.Render(fmt.Sprintf("%s[%d] %s  ", indicator, index+1, name)) +
			r.styles.Muted.Render(score)
	}

	excerpt := truncate(strings.Join(strings.Fields(src.TextExcerpt), " "), max(r.width-6, 20))
	return title + "\n" + r.styles.Source.Render("    "+excerpt)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// SetSources replaces the list and resets the selection.
func (r *SourceList) SetSources(sources []domain.Source) {
	r.sources = sources
	r.selected = 0
}

// Sources returns the current sources.
func (r *SourceList) Sources() []domain.Source {
	return r.sources
}

// Selected returns the index of the selected source.
func (r *SourceList) Selected() int {
	return r.selected
}

// SelectedSource returns the selected source, or nil if the list is empty.
func (r *SourceList) SelectedSource() *domain.Source {
	if r.selected < 0 || r.selected >= len(r.sources) {
		return nil
	}
	return &r.sources[r.selected]
}

// MoveUp moves selection up.
func (r *SourceList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *SourceList) MoveDown() {
	if r.selected < len(r.sources)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *SourceList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of sources.
func (r *SourceList) Count() int {
	return len(r.sources)
}
