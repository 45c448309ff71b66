// Package tree provides the binary search tree model shared by the builder,
// the search engine and the node store.
package tree

import (
	"strconv"
	"strings"
)

// NodeID identifies a node within one tree generation.
// The format is "<generation>/<index>".
type NodeID string

// None is the empty NodeID, used for absent children and the root's parent.
const None NodeID = ""

// Index returns the insertion index encoded in the ID, or -1 when the ID is malformed.
func (id NodeID) Index() int {
	_, raw, ok := strings.Cut(string(id), "/")
	if !ok {
		return -1
	}

	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return -1
	}

	return idx
}

// Generation returns the generation prefix of the ID.
func (id NodeID) Generation() string {
	gen, _, _ := strings.Cut(string(id), "/")

	return gen
}

func makeID(generation string, idx int) NodeID {
	return NodeID(generation + "/" + strconv.Itoa(idx))
}

// Color is the marker a node carries. It is an enumeration, not a rendering concept:
// views decide how each marker looks.
type Color uint8

const (
	// Unmarked is the default marker of every freshly built node.
	Unmarked Color = iota
	// PreviousRoot marks the origin of the previous search.
	PreviousRoot
	// InPath marks a node visited by the current search.
	InPath
	// Match marks a frontier node whose value equals the target.
	Match
	// NearMiss marks a frontier node whose value differs from the target.
	NearMiss
)

var colorNames = [...]string{
	Unmarked:     "unmarked",
	PreviousRoot: "previous-root",
	InPath:       "in-path",
	Match:        "match",
	NearMiss:     "near-miss",
}

// String returns the marker name.
func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}

	return "color(" + strconv.Itoa(int(c)) + ")"
}

// Valid reports whether c is one of the declared markers.
func (c Color) Valid() bool {
	return int(c) < len(colorNames)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Node is a single tree node. Values returned by the tree and the store are copies.
type Node struct {
	ID     NodeID  `json:"id"`
	Value  float64 `json:"value"`
	Color  Color   `json:"color"`
	Parent NodeID  `json:"parent,omitempty"`
	Left   NodeID  `json:"left,omitempty"`
	Right  NodeID  `json:"right,omitempty"`
}

// Children returns the present children, left first.
func (n Node) Children() []NodeID {
	children := make([]NodeID, 0, 2)

	if n.Left != None {
		children = append(children, n.Left)
	}

	if n.Right != None {
		children = append(children, n.Right)
	}

	return children
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return n.Left == None && n.Right == None
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.Parent == None
}

// Label formats the node value the way the builder accepts it back.
func (n Node) Label() string {
	return FormatValue(n.Value)
}

// FormatValue formats a value with the shortest representation that round-trips.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Path is the ordered sequence of node IDs from the root to the search frontier, inclusive.
type Path []NodeID

// Frontier returns the last ID of the path.
func (p Path) Frontier() (NodeID, bool) {
	if len(p) == 0 {
		return None, false
	}

	return p[len(p)-1], true
}

// Root returns the first ID of the path.
func (p Path) Root() (NodeID, bool) {
	if len(p) == 0 {
		return None, false
	}

	return p[0], true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}

	out := make(Path, len(p))
	copy(out, p)

	return out
}
