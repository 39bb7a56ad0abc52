// Package viewerws upgrades incoming HTTP requests to the viewer channel
// (a full-duplex websocket distinct from the logical RPC surface) and pumps
// subscribe_viewport / subscribe_chunks control messages into an
// observation.Hub. Fan-out and diffing live in internal/observation; this
// package is only the handshake and read loop at the edge.
package viewerws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/logging"
	"github.com/annel0/tickworld/internal/observation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type inboundEnvelope struct {
	Type string `json:"type"`
}

type subscribeViewportMsg struct {
	X       int `json:"x"`
	Y       int `json:"y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
	Padding int `json:"padding"`
}

type chunkCoordWire struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

type subscribeChunksMsg struct {
	Chunks []chunkCoordWire `json:"chunks"`
}

// Handler is an http.Handler that upgrades each request to a websocket and
// registers it with a Hub for the life of the connection.
type Handler struct {
	hub *observation.Hub
	log *logging.Logger
}

func NewHandler(hub *observation.Hub) *Handler {
	return &Handler{hub: hub, log: logging.GetComponentLogger("viewerws")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed: %v", err)
		return
	}

	v := h.hub.Connect(conn)
	defer h.hub.Disconnect(v)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Warn("malformed viewer message: %v", err)
			continue
		}

		switch env.Type {
		case "subscribe_viewport":
			var msg subscribeViewportMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				h.log.Warn("malformed subscribe_viewport: %v", err)
				continue
			}
			h.hub.SetViewport(v, msg.X, msg.Y, msg.Width, msg.Height, msg.Padding)
		case "subscribe_chunks":
			var msg subscribeChunksMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				h.log.Warn("malformed subscribe_chunks: %v", err)
				continue
			}
			coords := make([]chunkindex.Coord, 0, len(msg.Chunks))
			for _, c := range msg.Chunks {
				coords = append(coords, chunkindex.Coord{CX: c.CX, CY: c.CY})
			}
			h.hub.SetChunks(v, coords)
		default:
			h.log.Warn("unknown viewer message type %q", env.Type)
		}
	}
}
