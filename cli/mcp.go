// ABOUTME: MCP server subcommand
// ABOUTME: Serves the stakeholder map tools on stdio for desktop assistants
package cli

import (
	"github.com/harperreed/stakemap/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.logger.Info("starting MCP server",
				zap.String("version", a.version),
				zap.String("user", a.engine.UserID()))

			server := handlers.NewServer(a.engine, a.limiter, a.version)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
