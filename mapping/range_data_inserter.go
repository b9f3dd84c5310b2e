package mapping

import (
	"github.com/pkg/errors"
)

// RangeDataInserterOptions configure how one revolution of range data
// updates a probability grid.
type RangeDataInserterOptions struct {
	// HitProbability is the occupancy likelihood applied to return cells.
	// Must be in (0.5, MaxProbability].
	HitProbability float64
	// MissProbability is the occupancy likelihood applied to cells crossed
	// by rays. Must be in [MinProbability, 0.5).
	MissProbability float64
	// InsertFreeSpace enables miss updates along rays. When false only
	// return cells are updated.
	InsertFreeSpace bool
}

// Validate returns an error if the options would produce a degenerate
// Bayesian update.
func (o RangeDataInserterOptions) Validate() error {
	if o.HitProbability <= 0.5 || o.HitProbability > MaxProbability {
		return errors.Errorf("hit_probability must be in (0.5, %v], got %v", MaxProbability, o.HitProbability)
	}
	if o.MissProbability < MinProbability || o.MissProbability >= 0.5 {
		return errors.Errorf("miss_probability must be in [%v, 0.5), got %v", MinProbability, o.MissProbability)
	}
	return nil
}

// RangeDataInserter converts range data into hit and miss grid updates. The
// two lookup tables are precomputed at construction and immutable after, so
// a single inserter is safe to share across submaps.
type RangeDataInserter struct {
	options   RangeDataInserterOptions
	hitTable  []uint16
	missTable []uint16
}

// NewRangeDataInserter returns an inserter for the given options.
func NewRangeDataInserter(options RangeDataInserterOptions) (*RangeDataInserter, error) {
	if err := options.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid range data inserter options")
	}
	return &RangeDataInserter{
		options:   options,
		hitTable:  ComputeLookupTableToApplyOdds(Odds(options.HitProbability)),
		missTable: ComputeLookupTableToApplyOdds(Odds(options.MissProbability)),
	}, nil
}

// Options returns the options the inserter was constructed with.
func (ins *RangeDataInserter) Options() RangeDataInserterOptions {
	return ins.options
}

// Insert applies one revolution of range data to the grid: a hit update on
// every return cell and, when free space insertion is enabled, a miss
// update on every cell a ray crosses. Rays to returns exclude the hit cell;
// rays to misses include their endpoint. Points outside the grid limits are
// clipped. Ends the grid's update when done.
func (ins *RangeDataInserter) Insert(rangeData RangeData, grid *ProbabilityGrid) {
	limits := grid.Limits()
	for _, hit := range rangeData.Returns {
		cell := limits.GetCellIndex(hit)
		if limits.Contains(cell) {
			grid.ApplyLookupTable(cell, ins.hitTable)
		}
	}
	if ins.options.InsertFreeSpace {
		origin := limits.GetCellIndex(rangeData.Origin)
		applyMiss := func(cell CellIndex) {
			if limits.Contains(cell) {
				grid.ApplyLookupTable(cell, ins.missTable)
			}
		}
		for _, hit := range rangeData.Returns {
			castRay(origin, limits.GetCellIndex(hit), false, applyMiss)
		}
		for _, miss := range rangeData.Misses {
			castRay(origin, limits.GetCellIndex(miss), true, applyMiss)
		}
	}
	grid.FinishUpdate()
}

// castRay visits the cells on the integer line from begin to end using
// Bresenham rasterization, starting at begin. Each cell on the line is
// visited exactly once; the end cell is visited only when includeEnd is
// set. Duplicate visits across rays are harmless because lookup table
// updates are idempotent within a scan.
func castRay(begin, end CellIndex, includeEnd bool, visit func(CellIndex)) {
	dx := abs(end.X - begin.X)
	dy := -abs(end.Y - begin.Y)
	sx := 1
	if begin.X > end.X {
		sx = -1
	}
	sy := 1
	if begin.Y > end.Y {
		sy = -1
	}
	e := dx + dy
	x, y := begin.X, begin.Y
	for {
		if x == end.X && y == end.Y {
			if includeEnd {
				visit(end)
			}
			return
		}
		visit(CellIndex{X: x, Y: y})
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
