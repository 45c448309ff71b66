package tree

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// ValueError reports a value rejected during construction.
type ValueError struct {
	Index int
	Value float64
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value #%d (%s): %v", e.Index, FormatValue(e.Value), e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Validate checks the structural invariants: a single root without a parent,
// bidirectional parent/child links, a single parent per node, reachability of
// every node from the root (which rules out cycles) and the search ordering.
func (t *Tree) Validate() error {
	if t.IsEmpty() {
		return nil
	}

	if !t.inRange(t.root) || t.nodes[t.root].parent != noLink {
		return errors.Wrapf(ErrBadRoot, "root slot %d", t.root)
	}

	parentOf := make([]int, len(t.nodes))
	for idx := range parentOf {
		parentOf[idx] = noLink
	}

	for idx, n := range t.nodes {
		if idx != t.root {
			p := n.parent
			if !t.inRange(p) || (t.nodes[p].left != idx && t.nodes[p].right != idx) {
				return errors.Wrapf(ErrParentMismatch, "node %s parent %s", t.id(idx), t.linkID(p))
			}
		}

		for _, child := range [2]int{n.left, n.right} {
			if child == noLink {
				continue
			}

			if !t.inRange(child) {
				return errors.Wrapf(ErrChildMismatch, "node %s child %s", t.id(idx), t.linkID(child))
			}

			if prev := parentOf[child]; prev != noLink {
				return errors.Wrapf(ErrMultipleParent, "node %s under %s and %s", t.id(child), t.id(prev), t.id(idx))
			}

			if t.nodes[child].parent != idx {
				return errors.Wrapf(ErrChildMismatch, "node %s child %s", t.id(idx), t.id(child))
			}

			parentOf[child] = idx
		}
	}

	return t.checkOrdering()
}

func (t *Tree) inRange(idx int) bool {
	return idx >= 0 && idx < len(t.nodes)
}

// linkID formats a possibly dangling link for error messages.
func (t *Tree) linkID(idx int) string {
	if !t.inRange(idx) {
		return fmt.Sprintf("slot %d", idx)
	}

	return string(t.id(idx))
}

// checkOrdering walks from the root with value bounds. The walk is bounded by
// the node count, so a cycle shows up as an unreachable or revisited node.
func (t *Tree) checkOrdering() error {
	type frame struct {
		idx    int
		lo, hi float64
	}

	visited := make([]bool, len(t.nodes))
	count := 0
	stack := []frame{{idx: t.root, lo: math.Inf(-1), hi: math.Inf(1)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[top.idx] {
			return errors.Wrapf(ErrMultipleParent, "node %s visited twice", t.id(top.idx))
		}

		visited[top.idx] = true
		count++

		n := t.nodes[top.idx]
		if n.value <= top.lo || n.value >= top.hi {
			return errors.Wrapf(ErrOrdering, "node %s value %s outside (%s, %s)",
				t.id(top.idx), FormatValue(n.value), FormatValue(top.lo), FormatValue(top.hi))
		}

		if n.left != noLink {
			stack = append(stack, frame{idx: n.left, lo: top.lo, hi: n.value})
		}

		if n.right != noLink {
			stack = append(stack, frame{idx: n.right, lo: n.value, hi: top.hi})
		}
	}

	if count != len(t.nodes) {
		for idx, seen := range visited {
			if !seen {
				return errors.Wrapf(ErrUnreachable, "node %s", t.id(idx))
			}
		}
	}

	return nil
}
