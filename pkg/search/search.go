// Package search walks a binary search tree towards a target value and
// reports every node it visits.
//
// The walk starts at the root. A node equal to the target ends the walk;
// a smaller target moves to the left child, a larger one to the right child;
// a missing child ends the walk at the current node. The search does not
// classify the outcome: callers compare the frontier with the target.
package search

import (
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// FindPath returns the IDs visited from the root to the frontier, inclusive.
// It returns an empty path for a nil or empty tree. A NaN target compares
// neither less nor greater than any value, so the walk stops at the root.
func FindPath(t *tree.Tree, target float64) tree.Path {
	if t.IsEmpty() {
		return tree.Path{}
	}

	path := make(tree.Path, 0, t.Height())
	cur := t.Root()

	for cur != tree.None {
		n, ok := t.Node(cur)
		if !ok {
			break
		}

		path = append(path, cur)

		switch {
		case target < n.Value:
			cur = n.Left
		case target > n.Value:
			cur = n.Right
		default:
			cur = tree.None
		}
	}

	return path
}

// Frontier returns the last node of path.
func Frontier(t *tree.Tree, path tree.Path) (tree.Node, bool) {
	id, ok := path.Frontier()
	if !ok {
		return tree.Node{}, false
	}

	return t.Node(id)
}

// Matches reports whether the frontier of path holds exactly target.
func Matches(t *tree.Tree, path tree.Path, target float64) bool {
	n, ok := Frontier(t, path)

	return ok && n.Value == target
}

// Values returns the values along path, skipping IDs that do not belong to t.
func Values(t *tree.Tree, path tree.Path) []float64 {
	out := make([]float64, 0, len(path))

	for _, id := range path {
		if n, ok := t.Node(id); ok {
			out = append(out, n.Value)
		}
	}

	return out
}
