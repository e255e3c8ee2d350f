package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	remedyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// FormatError renders err as one red line, followed by the remedy when
// one applies.
func FormatError(err error) string {
	line := errorStyle.Render(fmt.Sprintf("Error [%s]: %v", domain.Kind(err), err))
	if remedy := domain.Remedy(err); remedy != "" {
		line += "\n" + remedyStyle.Render("  -> "+remedy)
	}
	return line
}

func errNotConfigured(what string) error {
	return fmt.Errorf("%s service not configured", what)
}
