package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"

	"github.com/Sumatoshi-tech/treefind/pkg/session"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

const emptyTree = "(empty tree)"

// DefaultMaxDepth is the number of levels a view draws when the options leave it unset.
const DefaultMaxDepth = 32

// TerminalOptions tunes Terminal.
type TerminalOptions struct {
	// Color enables ANSI colors regardless of the output device.
	Color bool
	// ShowIDs appends each node ID.
	ShowIDs bool
	// MaxDepth bounds the drawn levels; deeper subtrees collapse into one
	// summary line. Zero or negative uses DefaultMaxDepth.
	MaxDepth int
}

// Terminal writes the tree as a connected list, one node per line, with
// L and R marking the side each child hangs from. Marked nodes carry
// their marker name so the view stays readable without colors.
// Levels past MaxDepth are summarized as "… N more nodes".
func Terminal(w io.Writer, snap session.Snapshot, opts TerminalOptions) error {
	if len(snap.Nodes) == 0 {
		_, err := fmt.Fprintln(w, emptyTree)

		return err
	}

	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedLight)

	p := painter{enabled: opts.Color}
	limit := maxDepth(opts.MaxDepth)
	depth := 0

	moveTo := func(level int) {
		for ; depth < level; depth++ {
			lw.Indent()
		}

		for ; depth > level; depth-- {
			lw.UnIndent()
		}
	}

	var walk func(id tree.NodeID, side string, level int)

	walk = func(id tree.NodeID, side string, level int) {
		n, ok := snap.Node(id)
		if !ok {
			return
		}

		moveTo(level)
		lw.AppendItem(nodeLabel(p, n, side, opts.ShowIDs))

		if n.IsLeaf() {
			return
		}

		if level+1 >= limit {
			moveTo(level + 1)
			lw.AppendItem(elision(countBelow(snap, n)))

			return
		}

		if n.Left != tree.None {
			walk(n.Left, "L", level+1)
		}

		if n.Right != tree.None {
			walk(n.Right, "R", level+1)
		}
	}

	walk(snap.Root, "", 0)

	_, err := fmt.Fprintln(w, lw.Render())

	return err
}

func nodeLabel(p painter, n tree.Node, side string, showIDs bool) string {
	var sb strings.Builder

	if side != "" {
		sb.WriteString(side)
		sb.WriteString(" ")
	}

	sb.WriteString(p.paint(n.Color, n.Label()))

	if n.Color != tree.Unmarked {
		sb.WriteString(" (")
		sb.WriteString(n.Color.String())
		sb.WriteString(")")
	}

	if showIDs {
		sb.WriteString(" [")
		sb.WriteString(string(n.ID))
		sb.WriteString("]")
	}

	return sb.String()
}

func maxDepth(limit int) int {
	if limit <= 0 {
		return DefaultMaxDepth
	}

	return limit
}

// hidden summarizes the nodes a view leaves out.
type hidden struct {
	nodes  int
	marked int
}

// countBelow counts the descendants of n.
func countBelow(snap session.Snapshot, n tree.Node) hidden {
	var h hidden

	stack := n.Children()

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		child, ok := snap.Node(id)
		if !ok {
			continue
		}

		h.nodes++

		if child.Color != tree.Unmarked {
			h.marked++
		}

		stack = append(stack, child.Children()...)
	}

	return h
}

func elision(h hidden) string {
	noun := "nodes"
	if h.nodes == 1 {
		noun = "node"
	}

	if h.marked == 0 {
		return fmt.Sprintf("… %d more %s", h.nodes, noun)
	}

	return fmt.Sprintf("… %d more %s, %d marked", h.nodes, noun, h.marked)
}
