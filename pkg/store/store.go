// Package store holds the current tree generation and the color of every node.
//
// A Store is safe for concurrent use. Replace swaps the whole generation
// atomically: readers observe either the old or the new tree, never a mix.
// IDs minted for an older generation no longer resolve.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("node not found")

// ErrInvalidColor is returned by SetColor for an undeclared marker.
var ErrInvalidColor = errors.New("invalid color")

// NotFoundError reports an ID that is absent from the current generation.
type NotFoundError struct {
	ID tree.NodeID
	// Stale is set when the ID belongs to another generation.
	Stale bool
}

func (e *NotFoundError) Error() string {
	if e.Stale {
		return "node " + string(e.ID) + ": stale generation: " + ErrNotFound.Error()
	}

	return "node " + string(e.ID) + ": " + ErrNotFound.Error()
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type generation struct {
	tree *tree.Tree

	mu     sync.RWMutex
	colors []tree.Color
}

func newGeneration(t *tree.Tree) *generation {
	if t == nil {
		t = tree.Empty(tree.NewGeneration())
	}

	return &generation{tree: t, colors: make([]tree.Color, t.Len())}
}

// index resolves id to a slot of this generation.
func (g *generation) index(id tree.NodeID) (int, error) {
	if !g.tree.Contains(id) {
		return 0, &NotFoundError{ID: id, Stale: id != tree.None && id.Generation() != g.tree.Generation()}
	}

	return id.Index(), nil
}

// Store maps node IDs to nodes and their colors.
type Store struct {
	current atomic.Pointer[generation]
}

// New returns a Store holding an empty tree.
func New() *Store {
	s := &Store{}
	s.current.Store(newGeneration(nil))

	return s
}

// Replace installs t as the current generation with every node Unmarked.
// A nil tree installs an empty one.
func (s *Store) Replace(t *tree.Tree) {
	s.current.Store(newGeneration(t))
}

func (s *Store) load() *generation {
	g := s.current.Load()
	if g == nil {
		// Zero-value Store.
		g = newGeneration(nil)
		if !s.current.CompareAndSwap(nil, g) {
			g = s.current.Load()
		}
	}

	return g
}

// Get returns a copy of the node with its current color.
func (s *Store) Get(id tree.NodeID) (tree.Node, error) {
	g := s.load()

	idx, err := g.index(id)
	if err != nil {
		return tree.Node{}, err
	}

	n, _ := g.tree.Node(id)

	g.mu.RLock()
	n.Color = g.colors[idx]
	g.mu.RUnlock()

	return n, nil
}

// SetColor changes the color of exactly one node.
func (s *Store) SetColor(id tree.NodeID, c tree.Color) error {
	if !c.Valid() {
		return errors.Wrapf(ErrInvalidColor, "%d", c)
	}

	g := s.load()

	idx, err := g.index(id)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.colors[idx] = c
	g.mu.Unlock()

	return nil
}

// Tree returns the current tree. Trees are immutable.
func (s *Store) Tree() *tree.Tree {
	return s.load().tree
}

// Generation returns the generation of the current tree.
func (s *Store) Generation() string {
	return s.load().tree.Generation()
}

// Len returns the number of nodes in the current generation.
func (s *Store) Len() int {
	return s.load().tree.Len()
}

// Nodes returns copies of every node with its color, in insertion order.
// The tree and the colors come from the same generation.
func (s *Store) Nodes() (*tree.Tree, []tree.Node) {
	g := s.load()
	nodes := g.tree.Nodes()

	g.mu.RLock()
	defer g.mu.RUnlock()

	for idx := range nodes {
		nodes[idx].Color = g.colors[idx]
	}

	return g.tree, nodes
}
