package main

import (
	"fmt"

	"github.com/nvandessel/dksim/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run dksim as an MCP server over stdio",
		Long: `Run dksim as a Model Context Protocol server on stdin/stdout.

Tools:
  dksim_generate    participant table and summary
  dksim_quartiles   quartile-average views
  dksim_chart       Vega-Lite specs or a standalone HTML page
  dksim_export      write a run to a file under the export directory

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exportDirs, _ := cmd.Flags().GetStringSlice("export-dir")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:       "dksim",
				Version:    version,
				Settings:   a.cfg,
				Logger:     a.logger,
				RunLog:     a.runLog,
				ExportDirs: exportDirs,
			})
			if err != nil {
				return fmt.Errorf("create MCP server: %w", err)
			}

			a.logger.Info("dksim MCP server starting", "version", version)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringSlice("export-dir", nil, "Directory dksim_export may write to (repeatable, default ~/.dksim/exports)")

	return cmd
}
