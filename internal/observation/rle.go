package observation

import (
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/annel0/tickworld/internal/worldstate"
)

// EncodeTerrainRLE run-length encodes a row-major floor-code slice as
// (value, count) byte pairs, each run clamped to 255.
func EncodeTerrainRLE(terrain []worldstate.FloorCode) []byte {
	if len(terrain) == 0 {
		return nil
	}
	out := make([]byte, 0, len(terrain)/2+2)
	current := terrain[0]
	count := byte(1)
	for _, v := range terrain[1:] {
		if v == current && count < 255 {
			count++
			continue
		}
		out = append(out, byte(current), count)
		current = v
		count = 1
	}
	out = append(out, byte(current), count)
	return out
}

// DecodeTerrainRLE reverses EncodeTerrainRLE, failing if the run lengths
// overflow or undershoot the expected total size.
func DecodeTerrainRLE(data []byte, expectedSize int) ([]worldstate.FloorCode, error) {
	out := make([]worldstate.FloorCode, 0, expectedSize)
	pos := 0
	for i := 0; i+1 < len(data); i += 2 {
		value := worldstate.FloorCode(data[i])
		count := int(data[i+1])
		if pos+count > expectedSize {
			return nil, errors.Errorf("RLE decode overflow: %d > %d", pos+count, expectedSize)
		}
		for n := 0; n < count; n++ {
			out = append(out, value)
		}
		pos += count
	}
	if pos != expectedSize {
		return nil, errors.Errorf("RLE decode size mismatch: got %d, expected %d", pos, expectedSize)
	}
	return out, nil
}

// EncodeTerrainBase64 wraps EncodeTerrainRLE's output for wire transport.
func EncodeTerrainBase64(terrain []worldstate.FloorCode) string {
	return base64.StdEncoding.EncodeToString(EncodeTerrainRLE(terrain))
}

// DecodeTerrainBase64 reverses EncodeTerrainBase64.
func DecodeTerrainBase64(data string, expectedSize int) ([]worldstate.FloorCode, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decode terrain")
	}
	return DecodeTerrainRLE(raw, expectedSize)
}

// TerrainChange is one sparse override applied to a chunk's dense terrain.
// Hub does not use it: a changed chunk is always resent as a full chunk_data.
type TerrainChange struct {
	LocalX, LocalY int
	FloorType      worldstate.FloorCode
}
