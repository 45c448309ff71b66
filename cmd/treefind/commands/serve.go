package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/server"
)

type serveOptions struct {
	host string
	port int
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API for one shared tree.

  POST /api/tree        build a tree from {"text", "format"}
  GET  /api/tree        the tree with its markers
  GET  /api/tree/chart  HTML chart of the tree
  POST /api/find        search for {"query"}
  GET  /metrics         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	env, err := root.setup(observability.ModeServe, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.close()

	sess, err := env.newSession(root)
	if err != nil {
		return err
	}

	srvCfg := env.cfg.Server
	if opts.host != "" {
		srvCfg.Host = opts.host
	}

	if opts.port > 0 {
		srvCfg.Port = opts.port
	}

	srv := server.New(sess, srvCfg, render.HTMLOptions{
		Width:    env.cfg.Render.ChartWidth,
		Height:   env.cfg.Render.ChartHeight,
		MaxDepth: env.cfg.Render.MaxDepth,
	}, env.cfg.Limits.MaxInputBytes(), server.Deps{
		Logger:         env.providers.Logger,
		Tracer:         env.providers.Tracer,
		RED:            env.red,
		MetricsHandler: env.providers.MetricsHandler,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
