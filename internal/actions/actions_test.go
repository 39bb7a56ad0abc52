package actions

import (
	"testing"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/worldstate"
	"github.com/stretchr/testify/require"
)

func newTestIntegrator(t *testing.T) (*worldstate.World, *Integrator) {
	t.Helper()
	world := worldstate.NewWorld(10, 10)
	idx := chunkindex.New(world, 32)
	return world, NewIntegrator(world, idx)
}

func TestCollectContention(t *testing.T) {
	world, in := newTestIntegrator(t)
	pos := geometry.Position{X: 2, Y: 2}
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "a", Position: pos}))
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "b", Position: pos}))
	require.NoError(t, world.AddObject(worldstate.NewWorldObject("bush-1", pos, "bush", map[string]string{"berry_count": "1"})))

	results, _ := in.ProcessCollect(map[string]CollectIntent{
		"a": {EntityID: "a", ItemType: "berry", Amount: 1},
		"b": {EntityID: "b", ItemType: "berry", Amount: 1},
	}, []string{"a", "b"})

	byID := map[string]CollectResult{}
	for _, r := range results {
		byID[r.EntityID] = r
	}
	require.True(t, byID["a"].Success)
	require.Equal(t, 1, byID["a"].Amount)
	require.False(t, byID["b"].Success)
	require.Equal(t, "no_berries", byID["b"].FailureReason)

	obj, err := world.GetObject("bush-1")
	require.NoError(t, err)
	require.Equal(t, "0", obj.GetState("berry_count", ""))
}

func TestEatInsufficientItems(t *testing.T) {
	world, in := newTestIntegrator(t)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "a", Position: geometry.Position{X: 1, Y: 1}}))

	results := in.ProcessEat(map[string]EatIntent{
		"a": {EntityID: "a", ItemType: "berry", Amount: 2},
	}, []string{"a"})

	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.Equal(t, "insufficient_items", results[0].FailureReason)
}

func TestRegenerationRunsAtTickZero(t *testing.T) {
	world, in := newTestIntegrator(t)
	pos := geometry.Position{X: 1, Y: 1}
	require.NoError(t, world.AddObject(worldstate.NewWorldObject("bush-1", pos, "bush", map[string]string{"berry_count": "0", "max_berries": "5"})))

	changes := in.ProcessRegeneration(0, 10)
	require.Len(t, changes, 1)
	require.Equal(t, "1", changes[0].NewValue)
}

func TestRegenerationSkipsOffCadenceTicks(t *testing.T) {
	world, in := newTestIntegrator(t)
	pos := geometry.Position{X: 1, Y: 1}
	require.NoError(t, world.AddObject(worldstate.NewWorldObject("bush-1", pos, "bush", map[string]string{"berry_count": "0"})))

	changes := in.ProcessRegeneration(3, 10)
	require.Empty(t, changes)
}
