package store_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func sample(t *testing.T) *tree.Tree {
	t.Helper()

	built, err := tree.FromValues(tree.NewGeneration(), []float64{5, 3, 8, 1, 4})
	require.NoError(t, err)

	return built
}

func TestStore_NewIsEmpty(t *testing.T) {
	t.Parallel()

	s := store.New()

	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Tree().IsEmpty())
	assert.NotEmpty(t, s.Generation())
	assert.Empty(t, marked(s))
}

func TestStore_ZeroValueUsable(t *testing.T) {
	t.Parallel()

	var s store.Store

	assert.Equal(t, 0, s.Len())

	_, err := s.Get("x/0")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_GetAndSetColor(t *testing.T) {
	t.Parallel()

	s := store.New()
	built := sample(t)
	s.Replace(built)

	root, err := s.Get(built.Root())
	require.NoError(t, err)
	assert.InDelta(t, 5.0, root.Value, 0)
	assert.Equal(t, tree.Unmarked, root.Color)

	require.NoError(t, s.SetColor(built.Root(), tree.Match))

	root, err = s.Get(built.Root())
	require.NoError(t, err)
	assert.Equal(t, tree.Match, root.Color)

	assert.Equal(t, map[tree.NodeID]tree.Color{built.Root(): tree.Match}, marked(s))

	// The tree itself is not colored.
	n, ok := built.Node(built.Root())
	require.True(t, ok)
	assert.Equal(t, tree.Unmarked, n.Color)
}

func TestStore_SetColorTouchesOneNode(t *testing.T) {
	t.Parallel()

	s := store.New()
	built := sample(t)
	s.Replace(built)

	target := built.Nodes()[3].ID
	require.NoError(t, s.SetColor(target, tree.InPath))

	_, nodes := s.Nodes()
	for _, n := range nodes {
		if n.ID == target {
			assert.Equal(t, tree.InPath, n.Color)
		} else {
			assert.Equal(t, tree.Unmarked, n.Color, n.ID)
		}
	}
}

func TestStore_InvalidColor(t *testing.T) {
	t.Parallel()

	s := store.New()
	built := sample(t)
	s.Replace(built)

	err := s.SetColor(built.Root(), tree.Color(42))
	require.ErrorIs(t, err, store.ErrInvalidColor)
}

func TestStore_StaleIDs(t *testing.T) {
	t.Parallel()

	s := store.New()
	old := sample(t)
	s.Replace(old)
	require.NoError(t, s.SetColor(old.Root(), tree.InPath))

	s.Replace(sample(t))

	_, err := s.Get(old.Root())
	require.ErrorIs(t, err, store.ErrNotFound)

	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.Stale)
	assert.Equal(t, old.Root(), nf.ID)

	require.True(t, store.IsNotFound(s.SetColor(old.Root(), tree.Match)))
	assert.Empty(t, marked(s), "a new generation starts unmarked")
}

func TestStore_UnknownIDs(t *testing.T) {
	t.Parallel()

	s := store.New()
	built := sample(t)
	s.Replace(built)

	for _, id := range []tree.NodeID{tree.None, "garbage", tree.NodeID(built.Generation() + "/99")} {
		_, err := s.Get(id)

		var nf *store.NotFoundError
		require.ErrorAs(t, err, &nf, id)
		assert.False(t, nf.Stale, id)
	}
}

func TestStore_ReplaceNil(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Replace(sample(t))
	s.Replace(nil)

	assert.Equal(t, 0, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Replace(sample(t))

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				if worker%4 == 0 {
					s.Replace(sample(t))

					continue
				}

				tr, nodes := s.Nodes()
				assert.Len(t, nodes, tr.Len())

				for _, n := range nodes {
					err := s.SetColor(n.ID, tree.InPath)
					if err != nil {
						assert.True(t, store.IsNotFound(err))
					}
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 5, s.Len())
}
