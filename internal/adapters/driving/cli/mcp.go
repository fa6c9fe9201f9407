package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can review
submittals and inspect the knowledge base.

Tools:
  review_submittal   review a submittal against the standards
  knowledge_status   knowledge base readiness and statistics

Resources:
  submittal://reviews          recent reviews
  submittal://reviews/{limit}  the last {limit} reviews

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  submittal mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  submittal mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "submittal": {
        "command": "/path/to/submittal",
        "args": ["mcp", "serve"]
      }
    }
  }`,
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

	svc, _, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.close()

	if err := startKnowledge(cmd, svc); err != nil {
		return err
	}

	ports := &mcp.Ports{
		Review:    svc.Review,
		Knowledge: svc.Knowledge,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
