// Package chunkindex implements the fixed-size spatial partition (C3) over
// worldstate: O(1) entity/object->chunk lookup, a per-chunk version
// counter, and viewport->chunk-set queries for the viewer fan-out.
package chunkindex

import (
	"sync"

	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/worldstate"
)

// Coord is a chunk coordinate pair (cx, cy).
type Coord struct {
	CX, CY int
}

// Chunk is a fixed S*S region's membership and version. Terrain is not
// cached here; it is recomputed from worldstate.World.GetTerrainChunk on
// demand so a chunk never goes stale relative to sparse-override writes.
type Chunk struct {
	Coord    Coord
	Entities map[string]struct{}
	Objects  map[string]struct{}
	Version  int64
}

func newChunk(c Coord) *Chunk {
	return &Chunk{Coord: c, Entities: make(map[string]struct{}), Objects: make(map[string]struct{})}
}

// Index owns chunk membership. Size is the fixed chunk side S (32 by
// convention); World supplies world bounds and per-cell lookups.
type Index struct {
	mu    sync.RWMutex
	world *worldstate.World
	size  int

	chunks       map[Coord]*Chunk
	entityChunks map[string]Coord
	objectChunks map[string]Coord
}

func New(world *worldstate.World, size int) *Index {
	return &Index{
		world:        world,
		size:         size,
		chunks:       make(map[Coord]*Chunk),
		entityChunks: make(map[string]Coord),
		objectChunks: make(map[string]Coord),
	}
}

func (idx *Index) Size() int { return idx.size }

// ChunkCoords converts world coordinates to chunk coordinates by floor
// division, matching chunk_coords() in the original.
func (idx *Index) ChunkCoords(p geometry.Position) Coord {
	return Coord{CX: floorDiv(p.X, idx.size), CY: floorDiv(p.Y, idx.size)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (idx *Index) chunkCountX() int {
	return ceilDiv(idx.world.Width(), idx.size)
}

func (idx *Index) chunkCountY() int {
	return ceilDiv(idx.world.Height(), idx.size)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func (idx *Index) getOrCreate(c Coord) *Chunk {
	if ch, ok := idx.chunks[c]; ok {
		return ch
	}
	ch := newChunk(c)
	idx.chunks[c] = ch
	return ch
}

// GetChunk returns the chunk at c, lazily materializing it, or nil if c is
// outside the world's chunk bounds.
func (idx *Index) GetChunk(c Coord) *Chunk {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if c.CX < 0 || c.CY < 0 || c.CX >= idx.chunkCountX() || c.CY >= idx.chunkCountY() {
		return nil
	}
	return idx.getOrCreate(c)
}

// InitializeFromWorld sweeps the world's current entities and objects and
// assigns each to its chunk, populating chunks lazily.
func (idx *Index) InitializeFromWorld() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, e := range idx.world.AllEntities() {
		c := idx.ChunkCoords(e.Position)
		idx.entityChunks[id] = c
		idx.getOrCreate(c).Entities[id] = struct{}{}
	}
	for id, o := range idx.world.AllObjects() {
		c := idx.ChunkCoords(o.Position)
		idx.objectChunks[id] = c
		idx.getOrCreate(c).Objects[id] = struct{}{}
	}
}

// AddEntity registers a new entity's chunk membership.
func (idx *Index) AddEntity(id string, pos geometry.Position) Coord {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c := idx.ChunkCoords(pos)
	idx.entityChunks[id] = c
	ch := idx.getOrCreate(c)
	ch.Entities[id] = struct{}{}
	ch.Version++
	return c
}

// RemoveEntity drops an entity from chunk tracking.
func (idx *Index) RemoveEntity(id string) (Coord, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.entityChunks[id]
	if !ok {
		return Coord{}, false
	}
	delete(idx.entityChunks, id)
	if ch, ok := idx.chunks[c]; ok {
		delete(ch.Entities, id)
		ch.Version++
	}
	return c, true
}

// UpdateEntityPosition moves an entity's chunk membership on movement.
// The chunk's version increments even when the move stays within the
// same chunk, since any position change inside it invalidates cached
// viewer state for that chunk. Only the returned pair distinguishes a
// cross-chunk move from an intra-chunk one.
func (idx *Index) UpdateEntityPosition(id string, oldPos, newPos geometry.Position) (old, new_ *Coord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	oldChunk := idx.ChunkCoords(oldPos)
	newChunk := idx.ChunkCoords(newPos)

	if oldChunk == newChunk {
		ch := idx.getOrCreate(newChunk)
		ch.Entities[id] = struct{}{}
		ch.Version++
		idx.entityChunks[id] = newChunk
		return nil, nil
	}

	if ch, ok := idx.chunks[oldChunk]; ok {
		delete(ch.Entities, id)
		ch.Version++
	}
	newCh := idx.getOrCreate(newChunk)
	newCh.Entities[id] = struct{}{}
	newCh.Version++
	idx.entityChunks[id] = newChunk

	return &oldChunk, &newChunk
}

// AddObject registers a new object's chunk membership.
func (idx *Index) AddObject(id string, pos geometry.Position) Coord {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c := idx.ChunkCoords(pos)
	idx.objectChunks[id] = c
	ch := idx.getOrCreate(c)
	ch.Objects[id] = struct{}{}
	ch.Version++
	return c
}

func (idx *Index) RemoveObject(id string) (Coord, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.objectChunks[id]
	if !ok {
		return Coord{}, false
	}
	delete(idx.objectChunks, id)
	if ch, ok := idx.chunks[c]; ok {
		delete(ch.Objects, id)
		ch.Version++
	}
	return c, true
}

// TouchObjectChunk increments the version of the chunk an object lives in,
// for terrain/object-state changes that don't move the object (e.g. a
// bush's berry_count changing).
func (idx *Index) TouchObjectChunk(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if c, ok := idx.objectChunks[id]; ok {
		if ch, ok := idx.chunks[c]; ok {
			ch.Version++
		}
	}
}

func (idx *Index) GetEntityChunk(id string) (Coord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	c, ok := idx.entityChunks[id]
	return c, ok
}

func (idx *Index) GetObjectChunk(id string) (Coord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	c, ok := idx.objectChunks[id]
	return c, ok
}

// GetChunksForViewport returns the chunk coordinates whose S*S rectangle
// intersects the padded viewport, clipped to world chunk bounds.
func (idx *Index) GetChunksForViewport(x, y, width, height, padding int) []Coord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	startCX := max(0, floorDiv(x, idx.size)-padding)
	startCY := max(0, floorDiv(y, idx.size)-padding)
	endCX := min(idx.chunkCountX(), floorDiv(x+width-1, idx.size)+1+padding)
	endCY := min(idx.chunkCountY(), floorDiv(y+height-1, idx.size)+1+padding)

	var out []Coord
	for cy := startCY; cy < endCY; cy++ {
		for cx := startCX; cx < endCX; cx++ {
			out = append(out, Coord{CX: cx, CY: cy})
		}
	}
	return out
}

// GetEntitiesInChunks unions the entity id sets of the named chunks.
func (idx *Index) GetEntitiesInChunks(coords []Coord) map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]struct{})
	for _, c := range coords {
		if ch, ok := idx.chunks[c]; ok {
			for id := range ch.Entities {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// GetObjectsInChunks unions the object id sets of the named chunks.
func (idx *Index) GetObjectsInChunks(coords []Coord) map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]struct{})
	for _, c := range coords {
		if ch, ok := idx.chunks[c]; ok {
			for id := range ch.Objects {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// ChunkVersion returns the current version of c, 0 if never materialized.
func (idx *Index) ChunkVersion(c Coord) int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if ch, ok := idx.chunks[c]; ok {
		return ch.Version
	}
	return 0
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
