package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings such as the embedding and language model
providers, chunking and retrieval options.

Run 'ragpro settings show' to list every key.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. The value is checked before it is saved.

Switching embedding_provider or llm_provider also selects that provider's
default model. Changing the embedding model makes existing corpora
unusable until they are rebuilt when the vector size differs.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	RunE:  runSettingsPath,
}

var settingsKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Enter the LLM API key without echoing it",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKey,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	settingsCmd.AddCommand(settingsKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, key := range settingsService.Keys() {
		value, err := settingsService.Value(key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if settingsService.Secret(key) {
			value = maskSecret(value)
		}
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", key, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	cmd.Println()
	cmd.Println(dimStyle.Render("File: " + settingsService.Path()))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return err
	}
	shown, err := settingsService.Value(key)
	if err != nil {
		return err
	}
	if settingsService.Secret(key) {
		shown = maskSecret(shown)
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runSettingsPath(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	cmd.Println(settingsService.Path())
	return nil
}

func runSettingsKey(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	cmd.Print("LLM API key: ")
	key := readSecret(cmd.InOrStdin())
	cmd.Println()
	if key == "" {
		return errors.New("no key entered")
	}
	if err := settingsService.Set("llm_api_key", key); err != nil {
		return err
	}
	cmd.Printf("llm_api_key = %s\n", maskSecret(key))
	return nil
}

// readSecret reads a line without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}

func maskSecret(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
