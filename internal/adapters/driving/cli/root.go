// Package cli implements the ragpro command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// version is overridden at build time with -ldflags.
var version = "dev"

var (
	verbose bool
	dataDir string
)

// Services holds the driving ports the commands call.
type Services struct {
	Builder   driving.IndexBuilder
	Progress  driving.ProgressFeed
	Chat      driving.ChatService
	Corpus    driving.CorpusService
	Settings  driving.SettingsService
	Watch     driving.SourceWatchService
	Scheduler driving.Scheduler
	Providers driving.ProviderChecker
}

// Options are the global flags passed to a Bootstrap.
type Options struct {
	DataDir string
	Verbose bool
}

// Bootstrap builds the services once flags are parsed. The returned
// function releases them.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	indexBuilder    driving.IndexBuilder
	progressFeed    driving.ProgressFeed
	chatService     driving.ChatService
	corpusService   driving.CorpusService
	settingsService driving.SettingsService
	watchService    driving.SourceWatchService
	scheduler       driving.Scheduler
	providers       driving.ProviderChecker

	bootstrap Bootstrap
	release   func()
)

var rootCmd = &cobra.Command{
	Use:   "ragpro",
	Short: "Local document question answering",
	Long: `ragpro builds searchable corpora from local documents and answers
questions about them with a language model, citing the passages it used.

Build a corpus, then chat with it:
  ragpro build notes ~/Documents/notes
  ragpro chat notes "What did we decide about the release date?"`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if release != nil {
			release()
			release = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default $RAGPRO_HOME or ~/.ragpro)")
}

// SetServices installs the services directly, bypassing any Bootstrap.
func SetServices(s *Services) {
	indexBuilder = s.Builder
	progressFeed = s.Progress
	chatService = s.Chat
	corpusService = s.Corpus
	settingsService = s.Settings
	watchService = s.Watch
	scheduler = s.Scheduler
	providers = s.Providers
}

// SetBootstrap registers the function that builds the services.
func SetBootstrap(fn Bootstrap) {
	bootstrap = fn
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd == versionCmd {
		return nil
	}
	svc, done, err := bootstrap(cmd.Context(), Options{DataDir: dataDir, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("starting ragpro: %w", err)
	}
	SetServices(svc)
	release = done
	return nil
}

// ExecuteContext runs the command line. Errors are printed to stderr in
// their styled form and returned.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if release != nil {
		release()
		release = nil
	}
	if err != nil && !errors.Is(err, errSilent) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), FormatError(err))
	}
	return err
}

// errSilent marks failures already reported to the user.
var errSilent = errors.New("reported")
