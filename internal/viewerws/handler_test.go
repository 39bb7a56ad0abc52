package viewerws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/observation"
	"github.com/annel0/tickworld/internal/worldstate"
)

func newTestServer(t *testing.T) (*httptest.Server, *worldstate.World) {
	t.Helper()
	world := worldstate.NewWorld(64, 64)
	idx := chunkindex.New(world, 32)
	hub := observation.NewHub(world, idx)
	srv := httptest.NewServer(NewHandler(hub))
	t.Cleanup(srv.Close)
	return srv, world
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConnectSendsSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "snapshot", msg["type"])
	snap := msg["snapshot"].(map[string]interface{})
	require.Equal(t, float64(32), snap["chunk_size"])
}

func TestSubscribeViewportReturnsChunkData(t *testing.T) {
	srv, world := newTestServer(t)
	require.NoError(t, world.SetFloorArray(make([]worldstate.FloorCode, 64*64)))
	conn := dial(t, srv)

	var snapshot map[string]interface{}
	require.NoError(t, conn.ReadJSON(&snapshot))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "subscribe_viewport", "x": 0, "y": 0, "width": 10, "height": 10, "padding": 0,
	}))

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "chunk_data", msg["type"])
}

func TestUnknownMessageTypeDoesNotCrashConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	var snapshot map[string]interface{}
	require.NoError(t, conn.ReadJSON(&snapshot))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "nonsense"}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "subscribe_viewport", "x": 0, "y": 0, "width": 1, "height": 1, "padding": 0,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "chunk_data", msg["type"])
}
