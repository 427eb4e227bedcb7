package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/mcp"
)

var mcpAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the pipeline over the Model Context Protocol",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start an MCP server with tools to submit, inspect and cancel pipeline
tasks, trigger a resolve, and search the index. Feed sources, crawl history
and tasks are also readable as sercha:// resources.

The server speaks JSON-RPC over stdio unless --addr is given, in which case
it serves the streamable HTTP transport on that address.

Examples:
  sercha-ingest mcp serve
  sercha-ingest mcp serve --addr 127.0.0.1:8090`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpAddr, "addr", "", "serve HTTP on this address instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Tasks:  taskService,
		Search: searchService,
		Crawl:  crawlService,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if mcpAddr != "" {
		return server.RunHTTP(ctx, mcpAddr)
	}
	return server.Run(ctx)
}
