package observation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annel0/tickworld/internal/worldstate"
)

func TestRLERoundTrip(t *testing.T) {
	terrain := make([]worldstate.FloorCode, 32*32)
	for i := range terrain {
		terrain[i] = worldstate.DefaultFloorCode
	}
	terrain[10] = worldstate.FloorDeepWater
	terrain[500] = worldstate.FloorSand

	encoded := EncodeTerrainRLE(terrain)
	decoded, err := DecodeTerrainRLE(encoded, len(terrain))
	require.NoError(t, err)
	require.Equal(t, terrain, decoded)
}

func TestRLERunLongerThan255Bytes(t *testing.T) {
	terrain := make([]worldstate.FloorCode, 600)
	for i := range terrain {
		terrain[i] = worldstate.FloorStone
	}
	encoded := EncodeTerrainRLE(terrain)
	require.Equal(t, 6, len(encoded), "600 same values needs three runs: 255+255+90")

	decoded, err := DecodeTerrainRLE(encoded, len(terrain))
	require.NoError(t, err)
	require.Equal(t, terrain, decoded)
}

func TestRLEDecodeOverflowError(t *testing.T) {
	_, err := DecodeTerrainRLE([]byte{1, 200}, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflow")
}

func TestRLEDecodeSizeMismatchError(t *testing.T) {
	_, err := DecodeTerrainRLE([]byte{1, 10}, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mismatch")
}

func TestBase64RoundTrip(t *testing.T) {
	terrain := []worldstate.FloorCode{
		worldstate.FloorGrass, worldstate.FloorGrass, worldstate.FloorMountain,
	}
	encoded := EncodeTerrainBase64(terrain)
	decoded, err := DecodeTerrainBase64(encoded, len(terrain))
	require.NoError(t, err)
	require.Equal(t, terrain, decoded)
}
