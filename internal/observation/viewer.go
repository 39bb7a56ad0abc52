package observation

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/logging"
	"github.com/annel0/tickworld/internal/worldstate"
)

const viewerWriteWait = 5 * time.Second

// ViewerMessage is the JSON envelope sent over a viewer's websocket. Only
// one of the payload fields is set, selected by Type.
type ViewerMessage struct {
	Type string `json:"type"`

	Snapshot    *SnapshotPayload    `json:"snapshot,omitempty"`
	ChunkData   *ChunkDataPayload   `json:"chunk_data,omitempty"`
	ChunkUnload *ChunkUnloadPayload `json:"chunk_unload,omitempty"`
	TickStarted *TickEventPayload   `json:"tick_started,omitempty"`
	TickDone    *TickEventPayload   `json:"tick_completed,omitempty"`
}

// SnapshotPayload is sent once per connection, announcing the fixed chunk
// side so the client can translate between world and chunk coordinates.
type SnapshotPayload struct {
	ChunkSize int   `json:"chunk_size"`
	Tick      int64 `json:"tick"`
}

type ChunkDataPayload struct {
	CX      int    `json:"cx"`
	CY      int    `json:"cy"`
	Terrain string `json:"terrain_rle_b64"`
	Version int64  `json:"version"`
}

type ChunkUnloadPayload struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

type TickEventPayload struct {
	Tick int64 `json:"tick"`
}

// ViewerConn is one connected viewer: its websocket, its currently
// subscribed chunk set (for diffing against the next viewport), and the
// last version sent per chunk (to skip unchanged resends).
type ViewerConn struct {
	conn *websocket.Conn

	mu         sync.Mutex
	subscribed map[chunkindex.Coord]int64 // chunk -> last version sent
	writeErr   error
}

func newViewerConn(conn *websocket.Conn) *ViewerConn {
	return &ViewerConn{conn: conn, subscribed: make(map[chunkindex.Coord]int64)}
}

func (v *ViewerConn) send(msg ViewerMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.writeErr != nil {
		return
	}
	_ = v.conn.SetWriteDeadline(time.Now().Add(viewerWriteWait))
	if err := v.conn.WriteJSON(msg); err != nil {
		v.writeErr = err
	}
}

// Hub tracks connected viewers and pushes chunk-subscription diffs as
// their viewports move and as chunk versions change tick over tick.
type Hub struct {
	world *worldstate.World
	index *chunkindex.Index
	log   *logging.Logger

	mu      sync.Mutex
	viewers map[*ViewerConn]struct{}
}

func NewHub(world *worldstate.World, index *chunkindex.Index) *Hub {
	return &Hub{
		world:   world,
		index:   index,
		viewers: make(map[*ViewerConn]struct{}),
		log:     logging.GetComponentLogger("observation"),
	}
}

// Connect wraps a raw websocket connection as a tracked viewer and sends the
// initial snapshot announcing the fixed chunk size.
func (h *Hub) Connect(conn *websocket.Conn) *ViewerConn {
	v := newViewerConn(conn)
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
	v.send(ViewerMessage{Type: "snapshot", Snapshot: &SnapshotPayload{ChunkSize: h.index.Size(), Tick: h.world.Tick()}})
	h.log.Info("viewer connected, %d active", h.ViewerCount())
	return v
}

func (h *Hub) Disconnect(v *ViewerConn) {
	h.mu.Lock()
	delete(h.viewers, v)
	h.mu.Unlock()
	_ = v.conn.Close()
	h.log.Info("viewer disconnected, %d active", h.ViewerCount())
}

// ViewerCount reports currently connected viewer websockets, for metrics.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// SetViewport recomputes v's subscribed chunk set for a viewport whose
// top-left cell is (x, y), of the given width and height, widened by padding
// chunks on each side, sending chunk_data for
// newly-subscribed or changed chunks and chunk_unload for ones dropped.
func (h *Hub) SetViewport(v *ViewerConn, x, y, width, height, padding int) {
	h.setSubscribedChunks(v, h.index.GetChunksForViewport(x, y, width, height, padding))
}

// SetChunks replaces v's subscribed set with exactly the given coordinates,
// for the subscribe_chunks client message (an explicit list rather than a
// viewport the server derives chunks from).
func (h *Hub) SetChunks(v *ViewerConn, coords []chunkindex.Coord) {
	h.setSubscribedChunks(v, coords)
}

func (h *Hub) setSubscribedChunks(v *ViewerConn, wanted []chunkindex.Coord) {
	wantedSet := make(map[chunkindex.Coord]struct{}, len(wanted))
	for _, c := range wanted {
		wantedSet[c] = struct{}{}
	}

	v.mu.Lock()
	var toUnload []chunkindex.Coord
	for c := range v.subscribed {
		if _, ok := wantedSet[c]; !ok {
			toUnload = append(toUnload, c)
			delete(v.subscribed, c)
		}
	}
	v.mu.Unlock()

	for _, c := range toUnload {
		v.send(ViewerMessage{Type: "chunk_unload", ChunkUnload: &ChunkUnloadPayload{CX: c.CX, CY: c.CY}})
	}

	for _, c := range wanted {
		h.sendChunkIfChanged(v, c)
	}
}

// BroadcastTickBoundary notifies every connected viewer of a tick edge and
// resends any subscribed chunk whose version advanced during the tick.
func (h *Hub) BroadcastTickBoundary(event string, tick int64) {
	h.mu.Lock()
	viewers := make([]*ViewerConn, 0, len(h.viewers))
	for v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	payload := &TickEventPayload{Tick: tick}
	for _, v := range viewers {
		switch event {
		case "tick_started":
			v.send(ViewerMessage{Type: "tick_started", TickStarted: payload})
		case "tick_completed":
			v.send(ViewerMessage{Type: "tick_completed", TickDone: payload})
			v.mu.Lock()
			coords := make([]chunkindex.Coord, 0, len(v.subscribed))
			for c := range v.subscribed {
				coords = append(coords, c)
			}
			v.mu.Unlock()
			for _, c := range coords {
				h.sendChunkIfChanged(v, c)
			}
		}
	}
}

func (h *Hub) sendChunkIfChanged(v *ViewerConn, c chunkindex.Coord) {
	version := h.index.ChunkVersion(c)

	v.mu.Lock()
	last, known := v.subscribed[c]
	if known && last == version {
		v.mu.Unlock()
		return
	}
	v.subscribed[c] = version
	v.mu.Unlock()

	size := h.index.Size()
	terrain := h.world.GetTerrainChunk(c.CX, c.CY, size)
	v.send(ViewerMessage{
		Type: "chunk_data",
		ChunkData: &ChunkDataPayload{
			CX: c.CX, CY: c.CY,
			Terrain: EncodeTerrainBase64(terrain),
			Version: version,
		},
	})
}
