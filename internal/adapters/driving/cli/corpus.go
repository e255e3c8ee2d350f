package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

var (
	corpusJSON bool
	corpusYes  bool
)

var corpusCmd = &cobra.Command{
	Use:     "corpus",
	Aliases: []string{"corpora"},
	Short:   "Manage corpora",
	Long:    `List, inspect, create, rename and delete corpora.`,
	RunE:    runCorpusList,
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corpora, most recently modified first",
	Args:  cobra.NoArgs,
	RunE:  runCorpusList,
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats <name>",
	Short: "Show statistics of a corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusStats,
}

var corpusCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty corpus for the active embedding model",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusCreate,
}

var corpusDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a corpus and its conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusDelete,
}

var corpusRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a corpus and its conversation",
	Args:  cobra.ExactArgs(2),
	RunE:  runCorpusRename,
}

func init() {
	corpusListCmd.Flags().BoolVar(&corpusJSON, "json", false, "output as JSON")
	corpusStatsCmd.Flags().BoolVar(&corpusJSON, "json", false, "output as JSON")
	corpusDeleteCmd.Flags().BoolVarP(&corpusYes, "yes", "y", false, "delete without asking")

	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusStatsCmd)
	corpusCmd.AddCommand(corpusCreateCmd)
	corpusCmd.AddCommand(corpusDeleteCmd)
	corpusCmd.AddCommand(corpusRenameCmd)
	rootCmd.AddCommand(corpusCmd)
}

func runCorpusList(cmd *cobra.Command, _ []string) error {
	if corpusService == nil {
		return errNotConfigured("corpus")
	}
	list, err := corpusService.List(cmd.Context())
	if err != nil {
		return err
	}

	if corpusJSON {
		if list == nil {
			list = []domain.CorpusStats{}
		}
		return printJSON(cmd, list)
	}
	if len(list) == 0 {
		cmd.Println("No corpora yet. Create one with 'ragpro build <name> <dir>'.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILES\tCHUNKS\tSIZE\tMODEL\tMODIFIED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			c.Name, c.FileCount, c.ChunkCount, humanize.Bytes(uint64(max(c.BytesOnDisk, 0))),
			c.EmbeddingModelID, humanize.Time(c.ModifiedAt))
	}
	return tw.Flush()
}

func runCorpusStats(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return errNotConfigured("corpus")
	}
	st, err := corpusService.Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if corpusJSON {
		return printJSON(cmd, st)
	}

	cmd.Printf("Corpus:     %s\n", st.Name)
	cmd.Printf("Files:      %d\n", st.FileCount)
	cmd.Printf("Chunks:     %d\n", st.ChunkCount)
	cmd.Printf("Size:       %s\n", humanize.Bytes(uint64(max(st.BytesOnDisk, 0))))
	cmd.Printf("Model:      %s (vector_dim=%d)\n", st.EmbeddingModelID, st.VectorDim)
	cmd.Printf("Created:    %s\n", st.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("Modified:   %s\n", st.ModifiedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runCorpusCreate(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return errNotConfigured("corpus")
	}
	if err := corpusService.Create(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Corpus %s created.\n", args[0])
	return nil
}

func runCorpusDelete(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return errNotConfigured("corpus")
	}
	name := args[0]
	if !corpusYes {
		cmd.Printf("Delete corpus %s and its conversation? [y/N]: ", name)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n') //nolint:errcheck // EOF means no
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			cmd.Println("Cancelled.")
			return nil
		}
	}
	if err := corpusService.Delete(cmd.Context(), name); err != nil {
		return err
	}
	cmd.Printf("Corpus %s deleted.\n", name)
	return nil
}

func runCorpusRename(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return errNotConfigured("corpus")
	}
	if err := corpusService.Rename(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Corpus %s renamed to %s.\n", args[0], args[1])
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
