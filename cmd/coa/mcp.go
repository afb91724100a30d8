package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/mcptools"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve classifier tools over MCP stdio",
		Long: `Run a Model Context Protocol server on stdin and stdout.

Logs go to stderr so they never interleave with protocol messages.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.warm(ctx); err != nil {
				return err
			}
			return mcptools.NewServer(a.svc, version).ServeStdio()
		},
	}
}
