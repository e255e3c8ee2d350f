package cli

import (
	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <corpus> <source-dir>",
	Short: "Keep a corpus up to date with its source directory",
	Long: `Runs an append build, then watches source-dir and runs another one
shortly after files stop changing. Build failures are reported and the
watch continues. Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchService == nil {
		return errNotConfigured("watch")
	}
	logger.SetTimestamps(true)
	if progressFeed != nil {
		stop := printProgress(cmd.ErrOrStderr(), args[0])
		defer stop()
	}

	cmd.Printf("Watching %s for corpus %s (Ctrl+C to stop)\n", args[1], args[0])
	if err := watchService.Watch(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	cmd.Println("Stopped.")
	return nil
}
