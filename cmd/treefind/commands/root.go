// Package commands implements CLI command handlers for treefind.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/config"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/session"
	"github.com/Sumatoshi-tech/treefind/pkg/version"
)

const stdinArg = "-"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	verbose     bool
	noColor     bool
	inputFormat string
}

// NewRootCommand creates the treefind command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "treefind",
		Short: "Build binary search trees and trace searches through them",
		Long: `treefind builds a binary search tree from a list of numbers or a nested
document and shows the path a search for a value takes through it.

Commands:
  build     Parse input and print the tree
  find      Run searches and print the marked tree and path
  export    Write an HTML chart of the marked tree
  serve     Serve the HTTP API
  mcp       Serve MCP tools on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: treefind.yaml in ., ./config or /etc/treefind)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.inputFormat, "input-format", string(builder.FormatAuto), "input format: auto, list or structured")

	rootCmd.AddCommand(newBuildCommand(opts))
	rootCmd.AddCommand(newFindCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newMCPCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// runtimeEnv is what a command needs after configuration is loaded.
type runtimeEnv struct {
	cfg       *config.Config
	providers observability.Providers
	red       *observability.REDMetrics
	tree      *observability.TreeMetrics
}

// setup loads configuration and starts telemetry for mode. Logs go to logOut.
func (o *rootOptions) setup(mode observability.AppMode, logOut io.Writer) (*runtimeEnv, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obsCfg := cfg.Observability(mode, version.Version)
	if o.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	providers, err := observability.InitWithWriter(obsCfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	tm, err := observability.NewTreeMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &runtimeEnv{cfg: cfg, providers: providers, red: red, tree: tm}, nil
}

// close flushes telemetry.
func (e *runtimeEnv) close() {
	err := e.providers.Shutdown(context.Background())
	if err != nil {
		e.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// newSession creates a session honoring the configured limits and --input-format.
func (e *runtimeEnv) newSession(o *rootOptions) (*session.Session, error) {
	buildOpts := e.cfg.BuildOptions()

	format, err := builder.ParseFormat(o.inputFormat)
	if err != nil {
		return nil, err
	}

	buildOpts.Format = format

	return session.New(buildOpts, session.Deps{
		Logger: e.providers.Logger,
		Tracer: e.providers.Tracer,
		RED:    e.red,
		Tree:   e.tree,
	}), nil
}

// colored reports whether terminal output should carry ANSI colors.
func (e *runtimeEnv) colored(o *rootOptions) bool {
	return e.cfg.Render.Color && !o.noColor && !color.NoColor
}

// readInput reads the named file, or stdin for "-" or no name.
func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "" || name == stdinArg {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}

		return string(data), nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	return string(data), nil
}
