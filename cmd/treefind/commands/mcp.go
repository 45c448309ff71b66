package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treefind/pkg/mcp"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
)

func newMCPCommand(root *rootOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes one tree session as tools that AI agents can
discover and invoke:
  - tree_build: Build a binary search tree from numbers or a nested document
  - tree_find: Search the tree and mark the visited path
  - tree_show: Show the tree with its markers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if debug {
				root.verbose = true
			}

			env, err := root.setup(observability.ModeMCP, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close()

			sess, err := env.newSession(root)
			if err != nil {
				return err
			}

			logger := env.providers.Logger
			if !debug {
				logger = slog.New(slog.DiscardHandler)
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Session: sess,
				Logger:  logger,
				Metrics: env.red,
				Tracer:  env.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging of MCP traffic to stderr")

	return cmd
}
