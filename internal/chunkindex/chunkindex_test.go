package chunkindex

import (
	"testing"

	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/worldstate"
	"github.com/stretchr/testify/require"
)

func TestChunkVersionIncrementsOnCrossChunkMove(t *testing.T) {
	w := worldstate.NewWorld(200, 200)
	idx := New(w, 32)

	require.NoError(t, w.AddEntity(worldstate.Entity{EntityID: "e", Position: geometry.Position{X: 10, Y: 10}}))
	idx.AddEntity("e", geometry.Position{X: 10, Y: 10})

	old, new_ := idx.UpdateEntityPosition("e", geometry.Position{X: 10, Y: 10}, geometry.Position{X: 50, Y: 50})
	require.NotNil(t, old)
	require.NotNil(t, new_)
	require.Equal(t, Coord{0, 0}, *old)
	require.Equal(t, Coord{1, 1}, *new_)

	require.Equal(t, int64(2), idx.ChunkVersion(Coord{0, 0}))
	require.Equal(t, int64(1), idx.ChunkVersion(Coord{1, 1}))
}

func TestChunkVersionIncrementsOnSameChunkMove(t *testing.T) {
	// An intra-chunk move still invalidates viewer state for that chunk.
	w := worldstate.NewWorld(200, 200)
	idx := New(w, 32)
	idx.AddEntity("e", geometry.Position{X: 1, Y: 1})

	old, new_ := idx.UpdateEntityPosition("e", geometry.Position{X: 1, Y: 1}, geometry.Position{X: 2, Y: 1})
	require.Nil(t, old)
	require.Nil(t, new_)
	require.Equal(t, int64(2), idx.ChunkVersion(Coord{0, 0}))
}

func TestGetChunksForViewportClipsToWorldBounds(t *testing.T) {
	w := worldstate.NewWorld(64, 64)
	idx := New(w, 32)
	coords := idx.GetChunksForViewport(0, 0, 10, 10, 1)
	require.NotEmpty(t, coords)
	for _, c := range coords {
		require.GreaterOrEqual(t, c.CX, 0)
		require.GreaterOrEqual(t, c.CY, 0)
		require.Less(t, c.CX, 2)
		require.Less(t, c.CY, 2)
	}
}
