package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/treefind/pkg/session"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// PathTable writes one row per visited node with the marker the snapshot holds for it.
func PathTable(w io.Writer, res session.Result, snap session.Snapshot, colored bool) error {
	if !res.Searched {
		msg := "no search performed"
		if res.Invalid {
			msg = fmt.Sprintf("no search performed: %q is not a number", res.Query)
		}

		_, err := fmt.Fprintln(w, msg)

		return err
	}

	p := painter{enabled: colored}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Step", "Value", "Marker", "ID"})

	for step, id := range res.Path {
		n, ok := snap.Node(id)
		if !ok {
			continue
		}

		tw.AppendRow(table.Row{step + 1, p.paint(n.Color, n.Label()), n.Color.String(), string(id)})
	}

	tw.AppendFooter(table.Row{"", "target " + tree.FormatValue(res.Target), outcome(res), ""})

	_, err := fmt.Fprintln(w, tw.Render())

	return err
}

func outcome(res session.Result) string {
	switch {
	case len(res.Path) == 0:
		return "empty tree"
	case res.Matched:
		return "found"
	default:
		return "not found"
	}
}
