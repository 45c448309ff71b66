package tree

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Construction errors.
var (
	// ErrDuplicateValue indicates that a value was inserted twice.
	ErrDuplicateValue = errors.New("duplicate value")
	// ErrNonFinite indicates a NaN or infinite value.
	ErrNonFinite = errors.New("value is not finite")
	// ErrOrdering indicates that a shape violates the search tree ordering.
	ErrOrdering = errors.New("search tree ordering violated")
)

// Invariant errors reported by Validate.
var (
	ErrParentMismatch = errors.New("parent does not list node as a child")
	ErrChildMismatch  = errors.New("child does not point back to its parent")
	ErrMultipleParent = errors.New("node is a child of more than one parent")
	ErrUnreachable    = errors.New("node is not reachable from the root")
	ErrBadRoot        = errors.New("root is missing or has a parent")
)

// Tree is an immutable binary search tree: smaller values to the left, larger
// to the right. Nodes are stored in insertion order and linked by slot index;
// NodeIDs are minted when nodes leave the tree.
type Tree struct {
	generation string
	root       int
	height     int
	nodes      []entry
}

// noLink marks an absent parent or child slot.
const noLink = -1

type entry struct {
	value  float64
	parent int
	left   int
	right  int
	depth  int
}

// NewGeneration mints a fresh generation identifier.
func NewGeneration() string {
	return uuid.NewString()
}

// Empty returns a tree without nodes.
func Empty(generation string) *Tree {
	return &Tree{generation: generation, root: noLink}
}

// FromValues inserts values in order into an empty tree.
// The returned error carries the index of the offending value (see ValueError).
//
// Values beyond the current minimum or maximum attach directly to the
// leftmost or rightmost node, so sorted input builds in linear time.
func FromValues(generation string, values []float64) (*Tree, error) {
	ins := inserter{
		t: &Tree{
			generation: generation,
			root:       noLink,
			nodes:      make([]entry, 0, len(values)),
		},
		leftmost:  noLink,
		rightmost: noLink,
	}

	for idx, v := range values {
		err := ins.insert(v)
		if err != nil {
			return nil, &ValueError{Index: idx, Value: v, Err: err}
		}
	}

	return ins.t, nil
}

// Shape describes an explicit tree structure.
type Shape struct {
	Value float64
	Left  *Shape
	Right *Shape
}

// FromShape builds a tree from an explicit structure. Nodes are numbered in
// pre-order. The shape must already respect the search tree ordering.
func FromShape(generation string, shape *Shape) (*Tree, error) {
	t := Empty(generation)
	if shape == nil {
		return t, nil
	}

	type frame struct {
		shape  *Shape
		parent int
		left   bool
		lo, hi float64
	}

	stack := []frame{{shape: shape, parent: noLink, lo: math.Inf(-1), hi: math.Inf(1)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		v := top.shape.Value
		idx := len(t.nodes)

		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ValueError{Index: idx, Value: v, Err: ErrNonFinite}
		}

		if v <= top.lo || v >= top.hi {
			err := ErrOrdering
			if v == top.lo || v == top.hi {
				err = ErrDuplicateValue
			}

			return nil, &ValueError{Index: idx, Value: v, Err: err}
		}

		if top.parent == noLink {
			t.attachRoot(v)
		} else {
			t.attach(v, top.parent, top.left)
		}

		// Right is pushed first so the left subtree is numbered first.
		if top.shape.Right != nil {
			stack = append(stack, frame{shape: top.shape.Right, parent: idx, lo: v, hi: top.hi})
		}

		if top.shape.Left != nil {
			stack = append(stack, frame{shape: top.shape.Left, parent: idx, left: true, lo: top.lo, hi: v})
		}
	}

	return t, nil
}

// inserter tracks the slots holding the minimum and maximum values.
type inserter struct {
	t         *Tree
	leftmost  int
	rightmost int
}

func (ins *inserter) insert(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNonFinite
	}

	t := ins.t

	if t.root == noLink {
		ins.leftmost = t.attachRoot(v)
		ins.rightmost = ins.leftmost

		return nil
	}

	switch {
	case v > t.nodes[ins.rightmost].value:
		ins.rightmost = t.attach(v, ins.rightmost, false)

		return nil
	case v < t.nodes[ins.leftmost].value:
		ins.leftmost = t.attach(v, ins.leftmost, true)

		return nil
	}

	cur := t.root

	for {
		n := &t.nodes[cur]

		var next int

		switch {
		case v < n.value:
			next = n.left
		case v > n.value:
			next = n.right
		default:
			return ErrDuplicateValue
		}

		if next == noLink {
			t.attach(v, cur, v < n.value)

			return nil
		}

		cur = next
	}
}

func (t *Tree) attachRoot(v float64) int {
	t.nodes = append(t.nodes, entry{value: v, parent: noLink, left: noLink, right: noLink})
	t.root = len(t.nodes) - 1
	t.height = 1

	return t.root
}

// attach appends v as the left or right child of parent and returns its slot.
func (t *Tree) attach(v float64, parent int, left bool) int {
	idx := len(t.nodes)
	depth := t.nodes[parent].depth + 1

	t.nodes = append(t.nodes, entry{value: v, parent: parent, left: noLink, right: noLink, depth: depth})

	if left {
		t.nodes[parent].left = idx
	} else {
		t.nodes[parent].right = idx
	}

	t.height = max(t.height, depth+1)

	return idx
}

func (t *Tree) id(idx int) NodeID {
	if idx == noLink {
		return None
	}

	return makeID(t.generation, idx)
}

func (t *Tree) node(idx int) Node {
	e := t.nodes[idx]

	return Node{
		ID:     t.id(idx),
		Value:  e.value,
		Parent: t.id(e.parent),
		Left:   t.id(e.left),
		Right:  t.id(e.right),
	}
}

// slot resolves id to a node index of this tree.
func (t *Tree) slot(id NodeID) (int, bool) {
	if t == nil || id.Generation() != t.generation {
		return 0, false
	}

	idx := id.Index()
	if idx < 0 || idx >= len(t.nodes) {
		return 0, false
	}

	return idx, true
}

// Generation returns the generation every NodeID of this tree carries.
func (t *Tree) Generation() string {
	if t == nil {
		return ""
	}

	return t.generation
}

// Root returns the root ID, or None for an empty tree.
func (t *Tree) Root() NodeID {
	if t.IsEmpty() {
		return None
	}

	return t.id(t.root)
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}

	return len(t.nodes)
}

// IsEmpty reports whether the tree has no nodes.
func (t *Tree) IsEmpty() bool {
	return t.Len() == 0
}

// Node returns a copy of the node with the given ID.
func (t *Tree) Node(id NodeID) (Node, bool) {
	idx, ok := t.slot(id)
	if !ok {
		return Node{}, false
	}

	return t.node(idx), true
}

// Contains reports whether id belongs to this tree.
func (t *Tree) Contains(id NodeID) bool {
	_, ok := t.slot(id)

	return ok
}

// Nodes returns copies of all nodes in insertion order.
func (t *Tree) Nodes() []Node {
	if t == nil {
		return nil
	}

	out := make([]Node, len(t.nodes))
	for idx := range t.nodes {
		out[idx] = t.node(idx)
	}

	return out
}

// Values returns node values in insertion order.
func (t *Tree) Values() []float64 {
	if t == nil {
		return nil
	}

	out := make([]float64, len(t.nodes))
	for idx := range t.nodes {
		out[idx] = t.nodes[idx].value
	}

	return out
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	if t.IsEmpty() {
		return 0
	}

	return t.height
}

// PreOrder visits nodes root first, left subtree before right, with their
// depth (root = 0). Returning false from fn stops the walk.
func (t *Tree) PreOrder(fn func(n Node, depth int) bool) {
	if t.IsEmpty() {
		return
	}

	stack := []int{t.root}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e := t.nodes[idx]
		if !fn(t.node(idx), e.depth) {
			return
		}

		if e.right != noLink {
			stack = append(stack, e.right)
		}

		if e.left != noLink {
			stack = append(stack, e.left)
		}
	}
}

// InOrder returns the values in ascending order.
func (t *Tree) InOrder() []float64 {
	if t.IsEmpty() {
		return nil
	}

	out := make([]float64, 0, len(t.nodes))
	stack := make([]int, 0, t.height)
	cur := t.root

	for cur != noLink || len(stack) > 0 {
		for cur != noLink {
			stack = append(stack, cur)
			cur = t.nodes[cur].left
		}

		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, t.nodes[idx].value)
		cur = t.nodes[idx].right
	}

	return out
}

// Shape returns the explicit structure of the tree, or nil when empty.
func (t *Tree) Shape() *Shape {
	if t.IsEmpty() {
		return nil
	}

	shapes := make([]Shape, len(t.nodes))
	for idx := range t.nodes {
		shapes[idx].Value = t.nodes[idx].value
	}

	for idx := range t.nodes {
		if l := t.nodes[idx].left; l != noLink {
			shapes[idx].Left = &shapes[l]
		}

		if r := t.nodes[idx].right; r != noLink {
			shapes[idx].Right = &shapes[r]
		}
	}

	return &shapes[t.root]
}
