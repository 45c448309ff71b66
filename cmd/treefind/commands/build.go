package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/session"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownOutputFormat is returned for an unsupported --format value.
var ErrUnknownOutputFormat = errors.New("unknown output format")

type buildOptions struct {
	format  string
	showIDs bool
}

func newBuildCommand(root *rootOptions) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build [file|-]",
		Short: "Parse input and print the tree",
		Long: `Parse a tree description and print the resulting tree.

Input is read from the file, or from stdin when the file is "-" or omitted.
Parse errors report the line, column and offending token.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, root, opts, firstArg(args))
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", FormatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&opts.showIDs, "ids", false, "show node IDs")

	return cmd
}

func runBuild(cmd *cobra.Command, root *rootOptions, opts *buildOptions, input string) error {
	err := checkOutputFormat(opts.format)
	if err != nil {
		return err
	}

	text, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	env, err := root.setup(observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.close()

	sess, err := env.newSession(root)
	if err != nil {
		return err
	}

	_, err = sess.BuildTree(cmd.Context(), text)
	if err != nil {
		return err
	}

	return writeSnapshot(cmd.OutOrStdout(), sess.Snapshot(), opts.format, render.TerminalOptions{
		Color:    env.colored(root),
		ShowIDs:  opts.showIDs,
		MaxDepth: env.cfg.Render.MaxDepth,
	})
}

func checkOutputFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutputFormat, format)
	}
}

func writeSnapshot(w io.Writer, snap session.Snapshot, format string, opts render.TerminalOptions) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()

		return enc.Encode(snap)
	default:
		return render.Terminal(w, snap, opts)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}
