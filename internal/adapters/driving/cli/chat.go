package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

var (
	chatQuote   string
	chatHistory bool
	chatClear   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <corpus> [question]",
	Short: "Ask questions about a corpus",
	Long: `Answers a question from the documents of a corpus and lists the
passages the answer was based on.

Without a question, chat reads questions from stdin, one per line, until
end of input or "/exit".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatQuote, "quote", "q", "", "passage the question refers to")
	chatCmd.Flags().BoolVar(&chatHistory, "history", false, "print the stored conversation and exit")
	chatCmd.Flags().BoolVar(&chatClear, "clear", false, "delete the stored conversation and exit")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errNotConfigured("chat")
	}
	ctx := cmd.Context()
	corpus := args[0]

	switch {
	case chatClear:
		if err := chatService.ClearHistory(ctx, corpus); err != nil {
			return err
		}
		cmd.Printf("Conversation for %s cleared.\n", corpus)
		return nil
	case chatHistory:
		return printHistory(cmd, corpus)
	}

	if err := chatService.Mount(ctx, corpus); err != nil {
		return err
	}
	defer chatService.Unmount(corpus)

	if len(args) == 2 {
		return ask(ctx, cmd.OutOrStdout(), corpus, domain.ChatRequest{Message: args[1], QuotedText: chatQuote})
	}
	return chatLoop(ctx, cmd, corpus)
}

func chatLoop(ctx context.Context, cmd *cobra.Command, corpus string) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := ask(ctx, out, corpus, domain.ChatRequest{Message: line}); err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), FormatError(err))
		}
	}
}

// ask streams one answer to w, followed by its sources and statistics.
func ask(ctx context.Context, w io.Writer, corpus string, req domain.ChatRequest) error {
	events, err := chatService.Chat(ctx, corpus, req)
	if err != nil {
		return err
	}

	var res *domain.ChatResult
	for ev := range events {
		switch ev.Type {
		case domain.ChatEventToken:
			fmt.Fprint(w, ev.Token)
		case domain.ChatEventStage:
			if ev.Stage != nil {
				fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("(%s: %d candidates in %s)",
					ev.Stage.Name, ev.Stage.Candidates, ev.Stage.Elapsed.Round(time.Millisecond))))
			}
		case domain.ChatEventDone:
			res = ev.Result
		}
	}
	fmt.Fprintln(w)

	if res == nil {
		return fmt.Errorf("%w: chat stream ended without a result", domain.ErrProviderFailure)
	}
	if res.Err != nil {
		return res.Err
	}
	printSources(w, res.Sources)
	printStats(w, res.Stats)
	return nil
}

func printSources(w io.Writer, sources []domain.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for i, s := range sources {
		fmt.Fprintf(w, "  [%d] %s (%.3f)\n", i+1, s.FileName, s.Score)
		if s.TextExcerpt != "" {
			fmt.Fprintln(w, dimStyle.Render("      "+oneLine(s.TextExcerpt)))
		}
	}
}

func printStats(w io.Writer, st domain.ChatStats) {
	approx := ""
	if st.Estimated {
		approx = "~"
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%.1fs, %s%d prompt + %s%d completion tokens, %.1f tok/s",
		st.ElapsedSeconds, approx, st.PromptTokens, approx, st.CompletionTokens, st.TokensPerSecond)))
}

func printHistory(cmd *cobra.Command, corpus string) error {
	msgs, err := chatService.History(cmd.Context(), corpus)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		cmd.Printf("No conversation stored for %s.\n", corpus)
		return nil
	}
	for _, m := range msgs {
		stamp := m.CreatedAt.Format("2006-01-02 15:04")
		cmd.Printf("%s %s:\n", dimStyle.Render(stamp), m.Role)
		if m.Error != "" {
			cmd.Println(errorStyle.Render("  (failed) " + m.Error))
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			cmd.Printf("  %s\n", line)
		}
		for _, s := range m.Sources {
			cmd.Printf("    - %s\n", s.FileName)
		}
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
