package worldstate

import "github.com/annel0/tickworld/internal/geometry"

// FloorCode is an 8-bit wire-visible terrain value. This table must not be
// renumbered: it is shared with every RLE-encoded chunk a viewer receives.
type FloorCode uint8

const (
	FloorDeepWater    FloorCode = 0
	FloorShallowWater FloorCode = 1
	FloorSand         FloorCode = 2
	FloorGrass        FloorCode = 3
	FloorDirt         FloorCode = 4
	FloorMountain     FloorCode = 5
	FloorStone        FloorCode = 6
)

// DefaultFloorCode is used to pad terrain chunks that extend past the
// world's dense terrain array.
const DefaultFloorCode = FloorStone

type floorProps struct {
	walkable   bool
	opaque     bool
	floorType  string
}

var floorValueProps = map[FloorCode]floorProps{
	FloorDeepWater:    {walkable: false, opaque: false, floorType: "deep_water"},
	FloorShallowWater: {walkable: true, opaque: false, floorType: "shallow_water"},
	FloorSand:         {walkable: true, opaque: false, floorType: "sand"},
	FloorGrass:        {walkable: true, opaque: false, floorType: "grass"},
	FloorDirt:         {walkable: true, opaque: false, floorType: "dirt"},
	FloorMountain:     {walkable: false, opaque: true, floorType: "mountain"},
	FloorStone:        {walkable: true, opaque: false, floorType: "stone"},
}

// floorTypeToCode is the inverse mapping, used when translating a sparse
// tile override back into a numeric code for terrain-chunk extraction.
var floorTypeToCode = map[string]FloorCode{
	"deep_water":    FloorDeepWater,
	"shallow_water": FloorShallowWater,
	"sand":          FloorSand,
	"grass":         FloorGrass,
	"dirt":          FloorDirt,
	"mountain":      FloorMountain,
	"stone":         FloorStone,
}

// Tile is a derived, read-only view of one grid cell.
type Tile struct {
	Position  geometry.Position
	Walkable  bool
	Opaque    bool
	FloorType string
}

func tileFromFloorCode(pos geometry.Position, code FloorCode) Tile {
	props, ok := floorValueProps[code]
	if !ok {
		props = floorValueProps[FloorStone]
	}
	return Tile{Position: pos, Walkable: props.walkable, Opaque: props.opaque, FloorType: props.floorType}
}

func outOfBoundsTile(pos geometry.Position) Tile {
	return Tile{Position: pos, Walkable: false, Opaque: true, FloorType: "out_of_bounds"}
}
