package worldstate

import (
	"testing"

	"github.com/annel0/tickworld/internal/geometry"
	"github.com/stretchr/testify/require"
)

func TestAddEntityRejectsDuplicatePosition(t *testing.T) {
	w := NewWorld(10, 10)
	require.NoError(t, w.AddEntity(Entity{EntityID: "a", Position: geometry.Position{X: 1, Y: 1}}))
	err := w.AddEntity(Entity{EntityID: "b", Position: geometry.Position{X: 1, Y: 1}})
	require.ErrorIs(t, err, ErrPositionOccupied)
}

func TestUpdateEntityPositionChainAtomicity(t *testing.T) {
	// Regression witness for scenario 5 in SPEC_FULL.md §8: chained moves
	// must leave the vacated cell truly empty and the occupied cell
	// pointing at the right id, with no leftover stale index entry.
	w := NewWorld(10, 10)
	require.NoError(t, w.AddEntity(Entity{EntityID: "a", Position: geometry.Position{X: 3, Y: 3}}))
	require.NoError(t, w.AddEntity(Entity{EntityID: "b", Position: geometry.Position{X: 4, Y: 3}}))

	require.NoError(t, w.UpdateEntityPosition("a", geometry.Position{X: 4, Y: 3}))
	require.NoError(t, w.UpdateEntityPosition("b", geometry.Position{X: 5, Y: 3}))

	e, ok := w.GetEntityAt(geometry.Position{X: 4, Y: 3})
	require.True(t, ok)
	require.Equal(t, "a", e.EntityID)

	e, ok = w.GetEntityAt(geometry.Position{X: 5, Y: 3})
	require.True(t, ok)
	require.Equal(t, "b", e.EntityID)

	_, ok = w.GetEntityAt(geometry.Position{X: 3, Y: 3})
	require.False(t, ok)

	require.NoError(t, w.UpdateEntityPosition("a", geometry.Position{X: 4, Y: 4}))
}

func TestGetObjectsAtOrderedByObjectID(t *testing.T) {
	w := NewWorld(10, 10)
	pos := geometry.Position{X: 2, Y: 2}
	require.NoError(t, w.AddObject(NewWorldObject("bush-2", pos, "bush", nil)))
	require.NoError(t, w.AddObject(NewWorldObject("bush-1", pos, "bush", nil)))

	objs := w.GetObjectsAt(pos)
	require.Len(t, objs, 2)
	require.Equal(t, "bush-1", objs[0].ObjectID)
	require.Equal(t, "bush-2", objs[1].ObjectID)
}

func TestTilePriorityOverrideThenDenseThenDefault(t *testing.T) {
	w := NewWorld(2, 2)
	require.NoError(t, w.SetFloorArray([]FloorCode{
		FloorGrass, FloorGrass,
		FloorGrass, FloorGrass,
	}))
	p := geometry.Position{X: 0, Y: 0}
	require.True(t, w.IsWalkable(p))

	w.SetTile(p, Tile{Position: p, Walkable: false, Opaque: true, FloorType: "mountain"})
	require.False(t, w.IsWalkable(p))

	out := w.GetTile(geometry.Position{X: -1, Y: 0})
	require.False(t, out.Walkable)
	require.True(t, out.Opaque)
}

func TestInventoryAddRemoveRoundTrip(t *testing.T) {
	var inv Inventory
	inv = inv.Add("berry", 3)
	require.True(t, inv.Has("berry", 3))

	after, err := inv.Remove("berry", 3)
	require.NoError(t, err)
	require.Equal(t, 0, after.Count("berry"))

	_, err = inv.Remove("berry", 10)
	require.ErrorIs(t, err, ErrInsufficientItems)
	require.Equal(t, 3, inv.Count("berry"), "failed remove must not mutate original")
}
