// Package highlight applies search paths to node colors.
//
// It is the only place that decides which marker a node gets. The store
// exposes a single mutation entry point and this package owns the policy.
package highlight

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Sumatoshi-tech/treefind/pkg/search"
	"github.com/Sumatoshi-tech/treefind/pkg/store"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// ErrInvalidTarget is returned by ApplyQuery for text that is not a finite number.
var ErrInvalidTarget = errors.New("invalid search target")

// Store is the part of the node store the highlighter needs.
type Store interface {
	Get(id tree.NodeID) (tree.Node, error)
	SetColor(id tree.NodeID, c tree.Color) error
}

// ApplyPath reverts previous and marks next.
//
// Every ID of previous returns to Unmarked; IDs that no longer resolve are
// skipped. When next is non-empty the root of previous is first marked
// PreviousRoot, then every ID of next but the last is marked InPath and the
// last is marked Match when its value equals target, NearMiss otherwise.
// With an empty next the call is a pure revert.
func ApplyPath(s Store, previous, next tree.Path, target float64) error {
	err := revert(s, previous, len(next) > 0)
	if err != nil {
		return err
	}

	if len(next) == 0 {
		return nil
	}

	last := len(next) - 1

	for _, id := range next[:last] {
		err = s.SetColor(id, tree.InPath)
		if err != nil {
			return errors.Wrap(err, "mark path")
		}
	}

	frontier, err := s.Get(next[last])
	if err != nil {
		return errors.Wrap(err, "mark frontier")
	}

	marker := tree.NearMiss
	if frontier.Value == target {
		marker = tree.Match
	}

	return errors.Wrap(s.SetColor(frontier.ID, marker), "mark frontier")
}

// Revert returns every node of previous to Unmarked.
func Revert(s Store, previous tree.Path) error {
	return ApplyPath(s, previous, nil, 0)
}

// ParseTarget converts query text into a finite number.
func ParseTarget(raw string) (float64, error) {
	text := strings.TrimSpace(raw)

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrInvalidTarget, "%q", text)
	}

	return v, nil
}

// ApplyQuery parses raw, searches t and applies the resulting path.
//
// Empty or invalid text runs no search: previous is reverted and its root
// keeps the PreviousRoot indicator. The returned path is nil in that case
// and the error wraps ErrInvalidTarget for invalid non-empty text.
func ApplyQuery(s Store, t *tree.Tree, previous tree.Path, raw string) (tree.Path, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, revert(s, previous, true)
	}

	target, err := ParseTarget(raw)
	if err != nil {
		if revertErr := revert(s, previous, true); revertErr != nil {
			return nil, revertErr
		}

		return nil, err
	}

	next := search.FindPath(t, target)

	err = ApplyPath(s, previous, next, target)
	if err != nil {
		return nil, err
	}

	return next, nil
}

func revert(s Store, previous tree.Path, markRoot bool) error {
	for _, id := range previous {
		err := s.SetColor(id, tree.Unmarked)
		if err != nil && !store.IsNotFound(err) {
			return errors.Wrap(err, "revert path")
		}
	}

	if !markRoot {
		return nil
	}

	root, ok := previous.Root()
	if !ok {
		return nil
	}

	err := s.SetColor(root, tree.PreviousRoot)
	if err != nil && !store.IsNotFound(err) {
		return errors.Wrap(err, "mark previous root")
	}

	return nil
}
