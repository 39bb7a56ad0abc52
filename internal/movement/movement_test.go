package movement

import (
	"testing"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/worldstate"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, w, h int) (*worldstate.World, *chunkindex.Index) {
	t.Helper()
	world := worldstate.NewWorld(w, h)
	idx := chunkindex.New(world, 32)
	return world, idx
}

func TestSimpleMove(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "p1", Position: geometry.Position{X: 5, Y: 5}}))

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{"p1": geometry.North}, []string{"p1"})

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	e, _ := world.GetEntity("p1")
	require.Equal(t, geometry.Position{X: 5, Y: 4}, e.Position)
}

func TestSameDestinationRace(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "alpha", Position: geometry.Position{X: 4, Y: 5}}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "beta", Position: geometry.Position{X: 6, Y: 5}}))

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{
		"alpha": geometry.East,
		"beta":  geometry.West,
	}, []string{"alpha", "beta"})

	byID := map[string]MoveResult{}
	for _, res := range results {
		byID[res.EntityID] = res
	}
	require.True(t, byID["alpha"].Success)
	require.False(t, byID["beta"].Success)
	require.Equal(t, ReasonSameDestinationConflict, byID["beta"].Reason)

	alpha, _ := world.GetEntity("alpha")
	require.Equal(t, geometry.Position{X: 5, Y: 5}, alpha.Position)
	beta, _ := world.GetEntity("beta")
	require.Equal(t, geometry.Position{X: 6, Y: 5}, beta.Position)
}

func TestSwapConflict(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "a", Position: geometry.Position{X: 3, Y: 3}}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "b", Position: geometry.Position{X: 4, Y: 3}}))

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{
		"a": geometry.East,
		"b": geometry.West,
	}, []string{"a", "b"})

	for _, res := range results {
		require.False(t, res.Success)
		require.Equal(t, ReasonSwapConflict, res.Reason)
	}
}

func TestCycleOfThree(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "a", Position: geometry.Position{X: 3, Y: 3}}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "b", Position: geometry.Position{X: 4, Y: 3}}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "c", Position: geometry.Position{X: 4, Y: 4}}))

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{
		"a": geometry.East,
		"b": geometry.South,
		"c": geometry.Northwest,
	}, []string{"a", "b", "c"})

	require.Len(t, results, 3)
	for _, res := range results {
		require.False(t, res.Success)
		require.Equal(t, ReasonCycleConflict, res.Reason)
	}
}

func TestChainFollowAtomicity(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "a", Position: geometry.Position{X: 3, Y: 3}}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "b", Position: geometry.Position{X: 4, Y: 3}}))

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{
		"a": geometry.East,
		"b": geometry.East,
	}, []string{"a", "b"})

	for _, res := range results {
		require.True(t, res.Success)
	}

	ea, _ := world.GetEntityAt(geometry.Position{X: 4, Y: 3})
	require.Equal(t, "a", ea.EntityID)
	eb, _ := world.GetEntityAt(geometry.Position{X: 5, Y: 3})
	require.Equal(t, "b", eb.EntityID)
	_, ok := world.GetEntityAt(geometry.Position{X: 3, Y: 3})
	require.False(t, ok)

	// Regression witness: a subsequent single move must still succeed.
	results = r.Process(map[string]geometry.Direction{"a": geometry.South}, []string{"a"})
	require.True(t, results[0].Success)
}

func TestDiagonalCornerCutting(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "p", Position: geometry.Position{X: 5, Y: 5}}))
	world.SetTile(geometry.Position{X: 5, Y: 4}, worldstate.Tile{Position: geometry.Position{X: 5, Y: 4}, Walkable: false, Opaque: true, FloorType: "mountain"})
	world.SetTile(geometry.Position{X: 6, Y: 5}, worldstate.Tile{Position: geometry.Position{X: 6, Y: 5}, Walkable: false, Opaque: true, FloorType: "mountain"})

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{"p": geometry.Northeast}, []string{"p"})
	require.Empty(t, results, "rejected at validation, no MoveResult emitted")
}

func TestNonMoverOccupancyReleasesDestination(t *testing.T) {
	world, idx := newTestWorld(t, 10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "mover", Position: geometry.Position{X: 1, Y: 1}}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "stationary", Position: geometry.Position{X: 2, Y: 1}}))

	r := NewResolver(world, idx)
	results := r.Process(map[string]geometry.Direction{"mover": geometry.East}, []string{"mover"})

	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.Equal(t, ReasonDestinationOccupied, results[0].Reason)
}
