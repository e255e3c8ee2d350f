package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/mcp"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can list
corpora and ask questions against them.

Tools:     chat, list_corpora, corpus_stats
Resources: ragpro://corpora, ragpro://corpora/{name}/manifest

By default the server speaks JSON-RPC over stdio. Use --port to serve the
streamable HTTP transport instead.

Examples:
  ragpro mcp serve
  ragpro mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "ragpro": {
        "command": "/path/to/ragpro",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Corpus: corpusService,
		Chat:   chatService,
	}, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	logger.SetTimestamps(true)
	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
