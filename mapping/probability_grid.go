package mapping

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// ErrCellOutOfBounds is returned by SetProbability for cells outside the
// grid limits; ApplyLookupTable panics with it instead. Such accesses
// indicate a caller bug; the grid never grows.
var ErrCellOutOfBounds = errors.New("cell index outside grid limits")

// ErrCellAlreadyKnown is returned by SetProbability on a cell that has been
// painted before. Initial painting is the only supported use.
var ErrCellAlreadyKnown = errors.New("cell is already known")

// ProbabilityGrid is a dense 2D occupancy grid over quantized cell values.
// A value of 0 means unknown, 1..32767 encodes a probability in
// [MinProbability, MaxProbability], and the high bit marks cells already
// updated during the current scan.
//
// The grid is exclusively owned by its enclosing submap; external consumers
// operate on copies only.
type ProbabilityGrid struct {
	limits        MapLimits
	cells         []uint16
	updateIndices []int

	// Bounding box of known cells, tracked for cropping.
	knownMin CellIndex
	knownMax CellIndex
	hasKnown bool
}

// NewProbabilityGrid returns an all-unknown grid with the given limits.
func NewProbabilityGrid(limits MapLimits) *ProbabilityGrid {
	return &ProbabilityGrid{
		limits: limits,
		cells:  make([]uint16, limits.SizeX()*limits.SizeY()),
	}
}

// Limits returns the grid's map limits.
func (g *ProbabilityGrid) Limits() MapLimits {
	return g.limits
}

func (g *ProbabilityGrid) flatIndex(ci CellIndex) int {
	return ci.Y*g.limits.SizeX() + ci.X
}

func (g *ProbabilityGrid) markKnown(ci CellIndex) {
	if !g.hasKnown {
		g.knownMin, g.knownMax = ci, ci
		g.hasKnown = true
		return
	}
	if ci.X < g.knownMin.X {
		g.knownMin.X = ci.X
	}
	if ci.Y < g.knownMin.Y {
		g.knownMin.Y = ci.Y
	}
	if ci.X > g.knownMax.X {
		g.knownMax.X = ci.X
	}
	if ci.Y > g.knownMax.Y {
		g.knownMax.Y = ci.Y
	}
}

// SetProbability paints an unknown cell with the given probability. Painting
// a known cell or a cell outside the limits is a caller bug and returns an
// error.
func (g *ProbabilityGrid) SetProbability(ci CellIndex, probability float64) error {
	if !g.limits.Contains(ci) {
		return errors.Wrapf(ErrCellOutOfBounds, "cannot set probability at (%d, %d)", ci.X, ci.Y)
	}
	i := g.flatIndex(ci)
	if g.cells[i] != unknownValue {
		return errors.Wrapf(ErrCellAlreadyKnown, "cannot set probability at (%d, %d)", ci.X, ci.Y)
	}
	g.cells[i] = ProbabilityToValue(probability)
	g.markKnown(ci)
	return nil
}

// ApplyLookupTable applies a precomputed Bayesian update table to the cell
// and reports whether the cell changed. The cell is flagged with the update
// marker on first application, so repeated applications within one scan are
// no-ops until FinishUpdate runs. The cell must be within the grid limits.
func (g *ProbabilityGrid) ApplyLookupTable(ci CellIndex, table []uint16) bool {
	if !g.limits.Contains(ci) {
		panic(errors.Wrapf(ErrCellOutOfBounds, "cannot apply lookup table at (%d, %d)", ci.X, ci.Y).Error())
	}
	i := g.flatIndex(ci)
	value := g.cells[i]
	if value >= updateMarker {
		return false
	}
	g.updateIndices = append(g.updateIndices, i)
	g.cells[i] = table[value]
	g.markKnown(ci)
	return true
}

// GetProbability returns the occupancy probability of the cell: 0.5 for
// unknown cells and MinProbability for cells outside the grid limits. The
// out-of-bounds behavior lets the scan matcher probe shifted scans near the
// grid edge without growing the grid.
func (g *ProbabilityGrid) GetProbability(ci CellIndex) float64 {
	if !g.limits.Contains(ci) {
		return MinProbability
	}
	return ValueToProbability(g.cells[g.flatIndex(ci)])
}

// IsKnown reports whether the cell is within the limits and has been
// observed at least once.
func (g *ProbabilityGrid) IsKnown(ci CellIndex) bool {
	return g.limits.Contains(ci) && g.cells[g.flatIndex(ci)] != unknownValue
}

// FinishUpdate clears the update marker from every cell touched since the
// last call, ending the current scan's update.
func (g *ProbabilityGrid) FinishUpdate() {
	for _, i := range g.updateIndices {
		g.cells[i] &^= updateMarker
	}
	g.updateIndices = g.updateIndices[:0]
}

// Copy returns a deep copy of the grid.
func (g *ProbabilityGrid) Copy() *ProbabilityGrid {
	cells := make([]uint16, len(g.cells))
	copy(cells, g.cells)
	updateIndices := make([]int, len(g.updateIndices))
	copy(updateIndices, g.updateIndices)
	return &ProbabilityGrid{
		limits:        g.limits,
		cells:         cells,
		updateIndices: updateIndices,
		knownMin:      g.knownMin,
		knownMax:      g.knownMax,
		hasKnown:      g.hasKnown,
	}
}

// ComputeCroppedProbabilityGrid returns a grid whose limits are the minimal
// axis-aligned bounding box of the input's known cells. Every known cell
// keeps its probability; unknown cells outside the box are dropped. A grid
// with no known cells crops to a single unknown cell.
func ComputeCroppedProbabilityGrid(g *ProbabilityGrid) *ProbabilityGrid {
	if !g.hasKnown {
		return NewProbabilityGrid(NewMapLimits(g.limits.Resolution(), g.limits.Max(), 1, 1))
	}
	resolution := g.limits.Resolution()
	max := g.limits.Max().Sub(r2.Point{
		X: float64(g.knownMin.X) * resolution,
		Y: float64(g.knownMin.Y) * resolution,
	})
	sizeX := g.knownMax.X - g.knownMin.X + 1
	sizeY := g.knownMax.Y - g.knownMin.Y + 1
	cropped := NewProbabilityGrid(NewMapLimits(resolution, max, sizeX, sizeY))
	for y := g.knownMin.Y; y <= g.knownMax.Y; y++ {
		for x := g.knownMin.X; x <= g.knownMax.X; x++ {
			value := g.cells[y*g.limits.SizeX()+x] &^ updateMarker
			if value == unknownValue {
				continue
			}
			ci := CellIndex{X: x - g.knownMin.X, Y: y - g.knownMin.Y}
			cropped.cells[cropped.flatIndex(ci)] = value
			cropped.markKnown(ci)
		}
	}
	return cropped
}

// ToLogOddsBytes serializes the grid row-major as one log-odds byte per
// cell, with 0 denoting unknown.
func (g *ProbabilityGrid) ToLogOddsBytes() []byte {
	data := make([]byte, len(g.cells))
	for i, value := range g.cells {
		value &^= updateMarker
		if value == unknownValue {
			continue
		}
		data[i] = ProbabilityToLogOddsInteger(ValueToProbability(value))
	}
	return data
}

// ProbabilityGridFromLogOddsBytes reconstructs a grid from its log-odds
// byte serialization.
func ProbabilityGridFromLogOddsBytes(limits MapLimits, data []byte) (*ProbabilityGrid, error) {
	if len(data) != limits.SizeX()*limits.SizeY() {
		return nil, errors.Errorf("log odds data has %d cells, limits expect %d",
			len(data), limits.SizeX()*limits.SizeY())
	}
	g := NewProbabilityGrid(limits)
	for i, b := range data {
		if b == 0 {
			continue
		}
		ci := CellIndex{X: i % limits.SizeX(), Y: i / limits.SizeX()}
		if err := g.SetProbability(ci, LogOddsIntegerToProbability(b)); err != nil {
			return nil, err
		}
	}
	return g, nil
}
