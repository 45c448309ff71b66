package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/session"
)

type findOptions struct {
	format  string
	showIDs bool
}

// findStep is one query of a find run, as written by --format json or yaml.
type findStep struct {
	Result   session.Result   `json:"result"   yaml:"result"`
	Snapshot session.Snapshot `json:"snapshot" yaml:"snapshot"`
}

func newFindCommand(root *rootOptions) *cobra.Command {
	opts := &findOptions{}

	cmd := &cobra.Command{
		Use:   "find <file|-> [QUERY...]",
		Short: "Run searches and print the marked tree and path",
		Long: `Build a tree from the file (or stdin for "-") and run each query against it
in order. After every query the tree is printed with its markers, followed by
the visited path.

Queries share one session, so a query that is empty or not a number clears
the last path and leaves its origin marked as the previous root.

Flags go before the input. Everything after it is a query, so negative
numbers need no "--":

  treefind find -f json tree.txt -3 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, root, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", FormatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&opts.showIDs, "ids", false, "show node IDs")
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func runFind(cmd *cobra.Command, root *rootOptions, opts *findOptions, input string, queries []string) error {
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

	steps := make([]findStep, 0, len(queries))

	for _, query := range queries {
		result, findErr := sess.FindValue(cmd.Context(), query)
		if findErr != nil {
			return findErr
		}

		steps = append(steps, findStep{Result: result, Snapshot: sess.Snapshot()})
	}

	out := cmd.OutOrStdout()

	switch opts.format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(steps)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()

		return enc.Encode(steps)
	}

	termOpts := render.TerminalOptions{
		Color:    env.colored(root),
		ShowIDs:  opts.showIDs,
		MaxDepth: env.cfg.Render.MaxDepth,
	}

	if len(steps) == 0 {
		return render.Terminal(out, sess.Snapshot(), termOpts)
	}

	for idx, step := range steps {
		err = writeStep(out, idx, step, termOpts)
		if err != nil {
			return err
		}
	}

	return nil
}

func writeStep(w io.Writer, idx int, step findStep, opts render.TerminalOptions) error {
	if idx > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "query %q\n", step.Result.Query)

	err := render.Terminal(w, step.Snapshot, opts)
	if err != nil {
		return err
	}

	return render.PathTable(w, step.Result, step.Snapshot, opts.Color)
}
