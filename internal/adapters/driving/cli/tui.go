package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// runProgram runs the TUI model. Tests replace it.
var runProgram = func(app *tui.App) error {
	return app.Run()
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal chat.

Pick a corpus, ask questions and watch the answer stream in. The status
bar shows the open corpus, the machine load and the speed of the last
answer.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Select / Send
  Ctrl+X   - Stop the answer
  Ctrl+S   - Show sources
  Esc      - Back
  ?        - Help
  Ctrl+C   - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	ports := &tui.Ports{
		Corpus:    corpusService,
		Chat:      chatService,
		Settings:  settingsService,
		Scheduler: scheduler,
	}
	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	app.WithContext(ctx)

	// Logs would tear the alternate screen.
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	if scheduler != nil {
		go func() {
			if serr := scheduler.Start(ctx); serr != nil && !errors.Is(serr, context.Canceled) {
				logger.Warn("scheduler stopped: %v", serr)
			}
		}()
		defer func() {
			if serr := scheduler.Stop(); serr != nil {
				logger.Warn("scheduler stop: %v", serr)
			}
		}()
	}

	if err := runProgram(app); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
