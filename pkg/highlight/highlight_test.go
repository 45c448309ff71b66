package highlight_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/highlight"
	"github.com/Sumatoshi-tech/treefind/pkg/search"
	"github.com/Sumatoshi-tech/treefind/pkg/store"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// marked returns the color of every node that is not Unmarked.
func marked(s *store.Store) map[tree.NodeID]tree.Color {
	_, nodes := s.Nodes()
	out := make(map[tree.NodeID]tree.Color)

	for _, n := range nodes {
		if n.Color != tree.Unmarked {
			out[n.ID] = n.Color
		}
	}

	return out
}

func dumpColors(t *testing.T, s *store.Store) string {
	t.Helper()

	tr := s.Tree()
	if tr.IsEmpty() {
		return "(empty)\n"
	}

	var sb strings.Builder

	tr.PreOrder(func(n tree.Node, depth int) bool {
		colored, err := s.Get(n.ID)
		require.NoError(t, err)

		side := ""

		if !n.IsRoot() {
			parent, _ := tr.Node(n.Parent)
			side = "R:"

			if parent.Left == n.ID {
				side = "L:"
			}
		}

		fmt.Fprintf(&sb, "%s%s%s %s\n", strings.Repeat("  ", depth), side, n.Label(), colored.Color)

		return true
	})

	return sb.String()
}

func labels(tr *tree.Tree, path tree.Path) string {
	if len(path) == 0 {
		return "(empty)"
	}

	out := make([]string, 0, len(path))
	for _, v := range search.Values(tr, path) {
		out = append(out, tree.FormatValue(v))
	}

	return strings.Join(out, " ")
}

func TestHighlight_DataDriven(t *testing.T) {
	t.Parallel()

	s := store.New()

	var previous tree.Path

	datadriven.RunTest(t, "testdata/highlight", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "tree":
			built, err := builder.Build(d.Input)
			require.NoError(t, err)

			s.Replace(built)

			if !d.HasArg("keep-path") {
				previous = nil
			}

			return dumpColors(t, s)
		case "query":
			next, err := highlight.ApplyQuery(s, s.Tree(), previous, d.Input)
			previous = next

			var header string

			switch {
			case err != nil:
				require.ErrorIs(t, err, highlight.ErrInvalidTarget)

				header = "no search: " + err.Error()
			case next == nil:
				header = "no search"
			default:
				header = "path: " + labels(s.Tree(), next)
			}

			return header + "\n" + dumpColors(t, s)
		case "revert":
			require.NoError(t, highlight.Revert(s, previous))

			previous = nil

			return dumpColors(t, s)
		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
	})
}

func scenario(t *testing.T) (*store.Store, *tree.Tree) {
	t.Helper()

	built, err := builder.Build("5 3 8 1 4")
	require.NoError(t, err)

	s := store.New()
	s.Replace(built)

	return s, built
}

func TestApplyPath_Idempotent(t *testing.T) {
	t.Parallel()

	s, built := scenario(t)

	previous := search.FindPath(built, 4)
	require.NoError(t, highlight.ApplyPath(s, nil, previous, 4))

	next := search.FindPath(built, 9)

	require.NoError(t, highlight.ApplyPath(s, previous, next, 9))
	first := marked(s)

	require.NoError(t, highlight.ApplyPath(s, previous, next, 9))
	assert.Equal(t, first, marked(s))
}

func TestApplyPath_RevertRoundTrip(t *testing.T) {
	t.Parallel()

	s, built := scenario(t)

	for _, target := range []float64{4, 9, 5, 0, 3.5} {
		path := search.FindPath(built, target)
		require.NoError(t, highlight.ApplyPath(s, nil, path, target))
		require.NotEmpty(t, marked(s))

		require.NoError(t, highlight.ApplyPath(s, path, nil, target))

		for _, id := range path {
			n, err := s.Get(id)
			require.NoError(t, err)
			assert.Equal(t, tree.Unmarked, n.Color, "target %v", target)
		}
	}
}

func TestApplyPath_Scenario(t *testing.T) {
	t.Parallel()

	s, built := scenario(t)

	path := search.FindPath(built, 4)
	require.NoError(t, highlight.ApplyPath(s, nil, path, 4))

	want := map[float64]tree.Color{5: tree.InPath, 3: tree.InPath, 4: tree.Match}

	for _, id := range path {
		n, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want[n.Value], n.Color, n.Label())
	}

	path = search.FindPath(built, 9)
	require.NoError(t, highlight.ApplyPath(s, nil, path, 9))

	frontier, err := s.Get(path[len(path)-1])
	require.NoError(t, err)
	assert.InDelta(t, 8.0, frontier.Value, 0)
	assert.Equal(t, tree.NearMiss, frontier.Color)
}

func TestApplyPath_StaleNextFails(t *testing.T) {
	t.Parallel()

	s, built := scenario(t)
	path := search.FindPath(built, 4)

	rebuilt, err := builder.Build("5 3 8 1 4")
	require.NoError(t, err)
	s.Replace(rebuilt)

	err = highlight.ApplyPath(s, nil, path, 4)
	require.ErrorIs(t, err, store.ErrNotFound)

	// A stale previous path is tolerated.
	require.NoError(t, highlight.ApplyPath(s, path, search.FindPath(rebuilt, 4), 4))
}

type failingStore struct {
	*store.Store
}

var errBroken = errors.New("broken")

func (failingStore) SetColor(tree.NodeID, tree.Color) error { return errBroken }

func TestApplyPath_StoreErrorsSurface(t *testing.T) {
	t.Parallel()

	s, built := scenario(t)
	path := search.FindPath(built, 4)

	err := highlight.ApplyPath(failingStore{s}, path, nil, 4)
	require.ErrorIs(t, err, errBroken)

	_, err = highlight.ApplyQuery(failingStore{s}, built, path, "abc")
	require.ErrorIs(t, err, errBroken)
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{raw: "4", want: 4, ok: true},
		{raw: "  -2.5\n", want: -2.5, ok: true},
		{raw: "1e3", want: 1000, ok: true},
		{raw: "", ok: false},
		{raw: "four", ok: false},
		{raw: "NaN", ok: false},
		{raw: "-Inf", ok: false},
		{raw: "1e400", ok: false},
	}

	for _, tt := range tests {
		got, err := highlight.ParseTarget(tt.raw)
		if !tt.ok {
			require.ErrorIs(t, err, highlight.ErrInvalidTarget, tt.raw)

			continue
		}

		require.NoError(t, err, tt.raw)
		assert.InDelta(t, tt.want, got, 0, tt.raw)
	}
}
