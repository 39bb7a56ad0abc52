// Package worldstate implements the canonical world store (C2): entity and
// object registries, dense+sparse terrain, and the atomic position-index
// operations the movement resolver depends on.
package worldstate

import (
	"sort"
	"sync"

	"github.com/annel0/tickworld/internal/geometry"
	"github.com/pkg/errors"
)

var (
	ErrEntityAlreadyExists = errors.New("entity already exists")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrPositionOccupied    = errors.New("position occupied")
	ErrObjectAlreadyExists = errors.New("object already exists")
	ErrObjectNotFound      = errors.New("object not found")
)

// World owns the entity/object registries, their position indices, and the
// terrain. All mutating operations take the write lock for their full
// duration so that update_entity_position's remove-then-insert-then-replace
// sequence is indivisible with respect to concurrent readers and other
// movers in the same integration phase.
type World struct {
	mu sync.RWMutex

	width, height int
	tick          int64

	floorArray []FloorCode // row-major, height*width; nil if unset
	overrides  map[geometry.Position]Tile

	entities        map[string]Entity
	entityPositions map[geometry.Position]string

	objects        map[string]WorldObject
	objectPosition map[geometry.Position][]string // ids, ascending object_id
}

func NewWorld(width, height int) *World {
	return &World{
		width:           width,
		height:          height,
		overrides:       make(map[geometry.Position]Tile),
		entities:        make(map[string]Entity),
		entityPositions: make(map[geometry.Position]string),
		objects:         make(map[string]WorldObject),
		objectPosition:  make(map[geometry.Position][]string),
	}
}

// MapLoader is the seam through which a persisted map (dense floor array,
// object list, metadata) reaches the store. No concrete loader lives in
// this package; file format, compression, and generation are an external
// collaborator's concern.
type MapLoader interface {
	LoadFloorArray() (floors []FloorCode, width, height int, err error)
	LoadObjects() ([]WorldObject, error)
}

// LoadMap builds a World sized and seeded from loader.
func LoadMap(loader MapLoader) (*World, error) {
	floors, width, height, err := loader.LoadFloorArray()
	if err != nil {
		return nil, errors.Wrap(err, "load floor array")
	}
	w := NewWorld(width, height)
	if err := w.SetFloorArray(floors); err != nil {
		return nil, err
	}
	objs, err := loader.LoadObjects()
	if err != nil {
		return nil, errors.Wrap(err, "load objects")
	}
	for _, o := range objs {
		if err := w.AddObject(o); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *World) Width() int  { return w.width }
func (w *World) Height() int { return w.height }

func (w *World) Tick() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// AdvanceTick increments the world's tick counter by exactly one. Called
// once per scheduler cycle, at the end of BROADCAST.
func (w *World) AdvanceTick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick++
	return w.tick
}

// SetFloorArray installs the dense terrain. arr must be height*width,
// row-major. Ownership of arr transfers to the World.
func (w *World) SetFloorArray(arr []FloorCode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(arr) != w.width*w.height {
		return errors.Errorf("floor array size %d does not match %dx%d world", len(arr), w.width, w.height)
	}
	w.floorArray = arr
	return nil
}

func (w *World) InBounds(p geometry.Position) bool {
	return p.X >= 0 && p.X < w.width && p.Y >= 0 && p.Y < w.height
}

// GetTile computes the tile at p: sparse override, then dense terrain,
// then the default walkable stone tile. Out-of-bounds is non-walkable and
// opaque.
func (w *World) GetTile(p geometry.Position) Tile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.getTileLocked(p)
}

func (w *World) getTileLocked(p geometry.Position) Tile {
	if !w.InBounds(p) {
		return outOfBoundsTile(p)
	}
	if t, ok := w.overrides[p]; ok {
		return t
	}
	if w.floorArray != nil {
		return tileFromFloorCode(p, w.floorArray[p.Y*w.width+p.X])
	}
	return tileFromFloorCode(p, DefaultFloorCode)
}

// IsWalkable avoids constructing a Tile on the hot movement-validation
// path; priority order matches GetTile exactly.
func (w *World) IsWalkable(p geometry.Position) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.InBounds(p) {
		return false
	}
	if t, ok := w.overrides[p]; ok {
		return t.Walkable
	}
	if w.floorArray != nil {
		return floorValueProps[w.floorArray[p.Y*w.width+p.X]].walkable
	}
	return floorValueProps[DefaultFloorCode].walkable
}

// SetTile installs a sparse override at p, taking precedence over dense
// terrain until cleared.
func (w *World) SetTile(p geometry.Position, t Tile) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overrides[p] = t
}

// GetTerrainChunk returns an S*S row-major slice of floor codes for chunk
// (cx, cy): dense terrain clipped to world bounds, padded with
// DefaultFloorCode beyond the world edge, sparse overrides applied last.
func (w *World) GetTerrainChunk(cx, cy, size int) []FloorCode {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]FloorCode, size*size)
	for i := range out {
		out[i] = DefaultFloorCode
	}

	baseX, baseY := cx*size, cy*size
	for ly := 0; ly < size; ly++ {
		wy := baseY + ly
		if wy < 0 || wy >= w.height {
			continue
		}
		for lx := 0; lx < size; lx++ {
			wx := baseX + lx
			if wx < 0 || wx >= w.width {
				continue
			}
			if w.floorArray != nil {
				out[ly*size+lx] = w.floorArray[wy*w.width+wx]
			}
		}
	}

	for ly := 0; ly < size; ly++ {
		for lx := 0; lx < size; lx++ {
			p := geometry.Position{X: baseX + lx, Y: baseY + ly}
			if t, ok := w.overrides[p]; ok {
				if code, ok := floorTypeToCode[t.FloorType]; ok {
					out[ly*size+lx] = code
				}
			}
		}
	}
	return out
}

// AddEntity registers a new entity. Fails if the id already exists or the
// position is already occupied by another entity.
func (w *World) AddEntity(e Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.entities[e.EntityID]; exists {
		return errors.Wrapf(ErrEntityAlreadyExists, "entity_id=%s", e.EntityID)
	}
	if holder, occupied := w.entityPositions[e.Position]; occupied {
		return errors.Wrapf(ErrPositionOccupied, "position=%s held by %s", e.Position, holder)
	}
	w.entities[e.EntityID] = e
	w.entityPositions[e.Position] = e.EntityID
	return nil
}

func (w *World) GetEntity(id string) (Entity, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, errors.Wrapf(ErrEntityNotFound, "entity_id=%s", id)
	}
	return e, nil
}

// GetEntityAt returns the entity at p, if any.
func (w *World) GetEntityAt(p geometry.Position) (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.entityPositions[p]
	if !ok {
		return Entity{}, false
	}
	return w.entities[id], true
}

func (w *World) IsPositionOccupied(p geometry.Position) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entityPositions[p]
	return ok
}

func (w *World) RemoveEntity(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return errors.Wrapf(ErrEntityNotFound, "entity_id=%s", id)
	}
	delete(w.entities, id)
	delete(w.entityPositions, e.Position)
	return nil
}

// UpdateEntityPosition is the atomic remove-then-insert-then-replace that
// the movement resolver's chain-movement property depends on: within one
// held write lock, the old position-index entry is deleted, the new one is
// inserted, and the stored Entity record is replaced with WithPosition.
// Because this all happens under a single lock acquisition, no subsequent
// mover processed in the same phase can observe an intermediate state.
func (w *World) UpdateEntityPosition(id string, newPos geometry.Position) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return errors.Wrapf(ErrEntityNotFound, "entity_id=%s", id)
	}
	if cur, ok := w.entityPositions[e.Position]; ok && cur == id {
		delete(w.entityPositions, e.Position)
	}
	w.entityPositions[newPos] = id
	w.entities[id] = e.WithPosition(newPos)
	return nil
}

// UpdateEntityInventory replaces id's inventory in place.
func (w *World) UpdateEntityInventory(id string, inv Inventory) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return errors.Wrapf(ErrEntityNotFound, "entity_id=%s", id)
	}
	w.entities[id] = e.WithInventory(inv)
	return nil
}

// AllEntities returns a snapshot copy of the entity registry.
func (w *World) AllEntities() map[string]Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]Entity, len(w.entities))
	for k, v := range w.entities {
		out[k] = v
	}
	return out
}

func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// AddObject registers a new object. Many objects may share a position.
func (w *World) AddObject(o WorldObject) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.objects[o.ObjectID]; exists {
		return errors.Wrapf(ErrObjectAlreadyExists, "object_id=%s", o.ObjectID)
	}
	w.objects[o.ObjectID] = o
	w.objectPosition[o.Position] = insertSorted(w.objectPosition[o.Position], o.ObjectID)
	return nil
}

func (w *World) GetObject(id string) (WorldObject, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	o, ok := w.objects[id]
	if !ok {
		return WorldObject{}, errors.Wrapf(ErrObjectNotFound, "object_id=%s", id)
	}
	return o, nil
}

// GetObjectsAt returns the objects at p ordered by ascending object_id,
// making "any collectible at position" deterministic across callers.
func (w *World) GetObjectsAt(p geometry.Position) []WorldObject {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := w.objectPosition[p]
	out := make([]WorldObject, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.objects[id])
	}
	return out
}

func (w *World) UpdateObject(o WorldObject) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.objects[o.ObjectID]; !ok {
		return errors.Wrapf(ErrObjectNotFound, "object_id=%s", o.ObjectID)
	}
	w.objects[o.ObjectID] = o
	return nil
}

func (w *World) RemoveObject(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[id]
	if !ok {
		return errors.Wrapf(ErrObjectNotFound, "object_id=%s", id)
	}
	delete(w.objects, id)
	ids := w.objectPosition[o.Position]
	for i, candidate := range ids {
		if candidate == id {
			w.objectPosition[o.Position] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (w *World) AllObjects() map[string]WorldObject {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]WorldObject, len(w.objects))
	for k, v := range w.objects {
		out[k] = v
	}
	return out
}

func (w *World) ObjectCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.objects)
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
