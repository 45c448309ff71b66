package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
)

const (
	exportDirPerm = 0o750
	lz4Ext        = ".lz4"
)

// ErrNoOutput is returned when the --output flag is not set.
var ErrNoOutput = errors.New("output file is required (use --output, or - for stdout)")

type exportOptions struct {
	queries []string
	output  string
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <file|-> -o out.html",
		Short: "Write an HTML chart of the marked tree",
		Long: `Build a tree, run the --query values in order and write a standalone HTML
page with an interactive chart of the tree. Nodes are filled with the
colors of their markers after the last query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&opts.queries, "query", "q", nil, "search to run before exporting (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output HTML file, - for stdout; a .lz4 suffix compresses it")

	return cmd
}

func runExport(cmd *cobra.Command, root *rootOptions, opts *exportOptions, input string) error {
	if opts.output == "" {
		return ErrNoOutput
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

	subtitle := ""

	for _, query := range opts.queries {
		_, err = sess.FindValue(cmd.Context(), query)
		if err != nil {
			return err
		}

		subtitle = fmt.Sprintf("search %q", query)
	}

	htmlOpts := render.HTMLOptions{
		Width:    env.cfg.Render.ChartWidth,
		Height:   env.cfg.Render.ChartHeight,
		Subtitle: subtitle,
		MaxDepth: env.cfg.Render.MaxDepth,
	}

	if opts.output == stdinArg {
		return render.HTML(cmd.OutOrStdout(), sess.Snapshot(), htmlOpts)
	}

	return writeFile(opts.output, func(w io.Writer) error {
		return render.HTML(w, sess.Snapshot(), htmlOpts)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	err := os.MkdirAll(filepath.Dir(path), exportDirPerm)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if strings.HasSuffix(path, lz4Ext) {
		zw := lz4.NewWriter(f)

		err = write(zw)
		if err == nil {
			err = zw.Close()
		}
	} else {
		err = write(f)
	}

	closeErr := f.Close()
	if err != nil {
		return err
	}

	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}

	return nil
}
