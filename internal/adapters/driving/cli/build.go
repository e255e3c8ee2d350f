package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

var (
	buildMode      string
	buildYes       bool
	buildJSON      bool
	buildChunkSize int
	buildOverlap   int
	buildHidden    bool
)

var buildCmd = &cobra.Command{
	Use:   "build <corpus> <source-dir>",
	Short: "Build or update a corpus from a directory",
	Long: `Reads every supported document under source-dir, splits it into chunks,
embeds them and stores the result as a corpus.

Modes:
  append - reuse unchanged files from the existing corpus (default)
  new    - rebuild from scratch; needs --yes when the corpus exists

Press Ctrl+C to cancel. A cancelled or failed build leaves the previous
corpus untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildMode, "mode", "m", "append", "build mode: append or new")
	buildCmd.Flags().BoolVarP(&buildYes, "yes", "y", false, "confirm overwriting an existing corpus in new mode")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "print the result as JSON")
	buildCmd.Flags().IntVar(&buildChunkSize, "chunk-size", 0, "chunk size in characters (default from settings)")
	buildCmd.Flags().IntVar(&buildOverlap, "chunk-overlap", 0, "chunk overlap in characters (default from settings)")
	buildCmd.Flags().BoolVar(&buildHidden, "hidden", false, "include hidden files and directories")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if indexBuilder == nil {
		return errNotConfigured("build")
	}
	mode, err := domain.ParseBuildMode(buildMode)
	if err != nil {
		return err
	}

	req := domain.BuildRequest{
		Corpus:    args[0],
		Source:    args[1],
		Mode:      mode,
		Confirmed: buildYes,
		Options: domain.BuildOptions{
			ChunkSize:    buildChunkSize,
			ChunkOverlap: buildOverlap,
			Read:         domain.ReadOptions{FollowHidden: buildHidden},
		},
	}

	stop := func() {}
	if progressFeed != nil && !buildJSON {
		stop = printProgress(cmd.ErrOrStderr(), req.Corpus)
	}
	res, err := indexBuilder.Build(cmd.Context(), req)
	stop()

	if buildJSON && res != nil {
		if jerr := printBuildJSON(cmd.OutOrStdout(), res); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return err
	}
	if !buildJSON {
		printBuildSummary(cmd, res)
	}
	return nil
}

// printProgress mirrors build events of corpus to w until the returned
// function is called.
func printProgress(w io.Writer, corpus string) func() {
	events, cancel := progressFeed.Subscribe(256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.Corpus != "" && ev.Corpus != corpus {
				continue
			}
			if line := formatEvent(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func formatEvent(ev domain.ProgressEvent) string {
	step := ""
	if ev.Step > 0 {
		step = fmt.Sprintf("[%d/%d] ", ev.Step, len(domain.BuildStages))
	}
	switch ev.Phase {
	case domain.PhaseStart:
		return fmt.Sprintf("%s%s...", step, ev.Stage)
	case domain.PhaseEnd:
		if ev.Message == "" {
			return fmt.Sprintf("%s%s done", step, ev.Stage)
		}
		return fmt.Sprintf("%s%s done: %s", step, ev.Stage, ev.Message)
	case domain.PhaseWarning:
		return warnStyle.Render("warning: " + ev.Message)
	case domain.PhaseInfo:
		if ev.Message == "" {
			return ""
		}
		return dimStyle.Render("  " + ev.Message)
	default:
		return ""
	}
}

func printBuildJSON(w io.Writer, res *domain.BuildResult) error {
	out := struct {
		*domain.BuildResult
		Error  string `json:"error,omitempty"`
		Kind   string `json:"kind,omitempty"`
		Remedy string `json:"remedy,omitempty"`
	}{BuildResult: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
		out.Kind = domain.Kind(res.Err)
		out.Remedy = domain.Remedy(res.Err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printBuildSummary(cmd *cobra.Command, res *domain.BuildResult) {
	cmd.Printf("Corpus %s built (%s) in %s\n", res.Corpus, res.Mode, res.Duration.Round(time.Millisecond))
	cmd.Printf("  Files:  %d (%d added, %d modified, %d unchanged, %d removed)\n",
		res.FileCount, res.Added, res.Modified, res.Unchanged, res.Removed)
	if res.Kept > 0 {
		cmd.Printf("  Kept:   %d unreadable files from the previous build\n", res.Kept)
	}
	cmd.Printf("  Chunks: %d\n", res.ChunkCount)
	if r := res.Report; r.Failed > 0 || r.Skipped > 0 {
		cmd.Printf("  Read:   %d ok, %d failed, %d skipped\n", r.Success, r.Failed, r.Skipped)
		for _, s := range r.Skips {
			cmd.Printf("    %s: %s\n", s.Path, s.Reason)
		}
	}
	for _, w := range res.Warnings {
		cmd.Println(warnStyle.Render("warning: " + w))
	}
}
