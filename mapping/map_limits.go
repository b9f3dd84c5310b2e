package mapping

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// CellIndex addresses a single cell of a probability grid.
type CellIndex struct {
	X int
	Y int
}

// Add returns the componentwise sum of two cell indices.
func (ci CellIndex) Add(other CellIndex) CellIndex {
	return CellIndex{X: ci.X + other.X, Y: ci.Y + other.Y}
}

// MapLimits defines the affine between world coordinates and cell indices:
// the grid resolution, the world coordinate of the upper-left corner of cell
// (0, 0), and the cell dimensions of the grid.
type MapLimits struct {
	resolution float64
	max        r2.Point
	sizeX      int
	sizeY      int
}

// NewMapLimits returns map limits for a grid of sizeX by sizeY cells whose
// cell (0, 0) has its upper-left corner at max. Resolution and cell counts
// must be positive.
func NewMapLimits(resolution float64, max r2.Point, sizeX, sizeY int) MapLimits {
	if resolution <= 0 {
		panic(fmt.Sprintf("map limits resolution must be positive, got %v", resolution))
	}
	if sizeX <= 0 || sizeY <= 0 {
		panic(fmt.Sprintf("map limits cell dimensions must be positive, got (%d, %d)", sizeX, sizeY))
	}
	return MapLimits{resolution: resolution, max: max, sizeX: sizeX, sizeY: sizeY}
}

// Resolution returns the edge length of a cell in meters.
func (l MapLimits) Resolution() float64 {
	return l.resolution
}

// Max returns the world coordinate of the upper-left corner of cell (0, 0).
func (l MapLimits) Max() r2.Point {
	return l.max
}

// SizeX returns the number of cells along the x index axis.
func (l MapLimits) SizeX() int {
	return l.sizeX
}

// SizeY returns the number of cells along the y index axis.
func (l MapLimits) SizeY() int {
	return l.sizeY
}

// GetCellIndex returns the index of the cell containing the world point.
// The returned index is not necessarily within the grid bounds.
func (l MapLimits) GetCellIndex(point r2.Point) CellIndex {
	return CellIndex{
		X: int(math.Floor((l.max.X - point.X) / l.resolution)),
		Y: int(math.Floor((l.max.Y - point.Y) / l.resolution)),
	}
}

// CellCenter returns the world coordinate of the center of the given cell.
func (l MapLimits) CellCenter(ci CellIndex) r2.Point {
	return r2.Point{
		X: l.max.X - (float64(ci.X)+0.5)*l.resolution,
		Y: l.max.Y - (float64(ci.Y)+0.5)*l.resolution,
	}
}

// Contains reports whether the cell index is within the grid bounds.
func (l MapLimits) Contains(ci CellIndex) bool {
	return ci.X >= 0 && ci.Y >= 0 && ci.X < l.sizeX && ci.Y < l.sizeY
}
