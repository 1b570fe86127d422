package main

import (
	"fmt"

	"github.com/aretw0/argview/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [url]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Mirrors the remote process and exposes its tree to AI agents as MCP tools and resources.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 && !cmd.Flags().Changed("url") {
			cfg.URL = args[0]
		}

		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		return cli.RunMCP(cmd.Context(), cli.MCPOptions{
			Config:    cfg,
			Transport: transport,
			Addr:      fmt.Sprintf(":%d", port),
			Logger:    logger,
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("url", "", "URL of the remote process (default from config)")
	mcpCmd.Flags().String("protocol", "", "Framing spoken with the remote: socketio or envelope")
	mcpCmd.Flags().String("run-id", "", "Name of the observed run (random when empty)")
	mcpCmd.Flags().StringP("transport", "t", cli.TransportStdio, "Transport type (stdio, sse)")
	mcpCmd.Flags().IntP("port", "p", 8081, "Port for SSE transport")
}
