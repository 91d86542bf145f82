package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/mcpserver"
	"github.com/teranos/strata/version"
)

// McpCmd serves the platform tools over MCP on stdio
var McpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve platform tools over Model Context Protocol (stdio)",
	Long: `Serve entity, field, link, schema and search tools to an MCP client over stdio.

Calls that omit tenant_id use --tenant. Logs are written to stderr as JSON.

Example client configuration:
  {"command": "strata", "args": ["mcp", "--tenant", "acme"]}`,
	Args: cobra.NoArgs,
	RunE: runMcp,
}

func runMcp(cmd *cobra.Command, args []string) error {
	// A default tenant is optional here; each tool call may name its own
	tenant, _ := cmd.Flags().GetString("tenant")

	p, err := openPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := mcpserver.New(p, version.Name, version.Get().Short(), tenant, logger.Logger)
	return srv.ServeStdio()
}
