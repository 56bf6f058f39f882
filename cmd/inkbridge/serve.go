package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/tools"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operation catalog to MCP clients over stdio",
		Long: `Start an MCP server on stdin/stdout exposing every catalog operation.

Programs run one at a time: concurrent tool calls wait for the previous
dispatch to finish. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			catalog := tools.New(rt.Library, rt.Queue, tools.WithLogger(a.logger))
			server := catalog.NewServer(version)

			a.logger.Info("serving",
				"transport", rt.Executor.Transport().Name(),
				"work_dir", rt.Executor.Area().Root(),
				"tools", len(catalog.Tools()))

			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
