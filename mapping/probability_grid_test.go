package mapping_test

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viam-modules/cartocore/mapping"
)

func testLimits() mapping.MapLimits {
	return mapping.NewMapLimits(0.05, r2.Point{X: 0.5, Y: 0.5}, 10, 10)
}

func TestProbabilityGridUnknownCells(t *testing.T) {
	grid := mapping.NewProbabilityGrid(testLimits())
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			ci := mapping.CellIndex{X: x, Y: y}
			test.That(t, grid.GetProbability(ci), test.ShouldEqual, 0.5)
			test.That(t, grid.IsKnown(ci), test.ShouldBeFalse)
		}
	}
}

func TestProbabilityGridSetProbability(t *testing.T) {
	grid := mapping.NewProbabilityGrid(testLimits())
	ci := mapping.CellIndex{X: 3, Y: 7}

	test.That(t, grid.SetProbability(ci, 0.75), test.ShouldBeNil)
	test.That(t, grid.GetProbability(ci), test.ShouldAlmostEqual, 0.75, 1e-3)
	test.That(t, grid.IsKnown(ci), test.ShouldBeTrue)

	// Initial painting only: a second set on the same cell is a caller bug.
	err := grid.SetProbability(ci, 0.2)
	test.That(t, errors.Is(err, mapping.ErrCellAlreadyKnown), test.ShouldBeTrue)

	err = grid.SetProbability(mapping.CellIndex{X: 10, Y: 0}, 0.75)
	test.That(t, errors.Is(err, mapping.ErrCellOutOfBounds), test.ShouldBeTrue)
}

func TestProbabilityGridOutOfBoundsReads(t *testing.T) {
	grid := mapping.NewProbabilityGrid(testLimits())
	test.That(t, grid.GetProbability(mapping.CellIndex{X: -1, Y: 3}), test.ShouldEqual, mapping.MinProbability)
	test.That(t, grid.IsKnown(mapping.CellIndex{X: -1, Y: 3}), test.ShouldBeFalse)
}

func TestApplyLookupTableIdempotentWithinScan(t *testing.T) {
	table := mapping.ComputeLookupTableToApplyOdds(mapping.Odds(0.55))
	ci := mapping.CellIndex{X: 2, Y: 2}

	single := mapping.NewProbabilityGrid(testLimits())
	test.That(t, single.ApplyLookupTable(ci, table), test.ShouldBeTrue)
	single.FinishUpdate()

	repeated := mapping.NewProbabilityGrid(testLimits())
	test.That(t, repeated.ApplyLookupTable(ci, table), test.ShouldBeTrue)
	for i := 0; i < 5; i++ {
		test.That(t, repeated.ApplyLookupTable(ci, table), test.ShouldBeFalse)
	}
	repeated.FinishUpdate()

	test.That(t, repeated.GetProbability(ci), test.ShouldEqual, single.GetProbability(ci))
}

func TestApplyLookupTableAcrossScans(t *testing.T) {
	table := mapping.ComputeLookupTableToApplyOdds(mapping.Odds(0.55))
	ci := mapping.CellIndex{X: 2, Y: 2}
	grid := mapping.NewProbabilityGrid(testLimits())

	grid.ApplyLookupTable(ci, table)
	grid.FinishUpdate()
	first := grid.GetProbability(ci)

	// After FinishUpdate the same table applies again.
	test.That(t, grid.ApplyLookupTable(ci, table), test.ShouldBeTrue)
	grid.FinishUpdate()
	test.That(t, grid.GetProbability(ci), test.ShouldBeGreaterThan, first)
}

func TestGetProbabilityDuringUpdateStripsMarker(t *testing.T) {
	table := mapping.ComputeLookupTableToApplyOdds(mapping.Odds(0.55))
	ci := mapping.CellIndex{X: 1, Y: 1}
	grid := mapping.NewProbabilityGrid(testLimits())

	grid.ApplyLookupTable(ci, table)
	// Before FinishUpdate the marker is still set internally; reads ignore it.
	test.That(t, grid.GetProbability(ci), test.ShouldAlmostEqual, 0.55, 1e-3)
	grid.FinishUpdate()
	test.That(t, grid.GetProbability(ci), test.ShouldAlmostEqual, 0.55, 1e-3)
}

func TestComputeCroppedProbabilityGrid(t *testing.T) {
	grid := mapping.NewProbabilityGrid(testLimits())
	known := map[mapping.CellIndex]float64{
		{X: 2, Y: 3}: 0.55,
		{X: 6, Y: 3}: 0.8,
		{X: 4, Y: 7}: 0.3,
	}
	for ci, p := range known {
		test.That(t, grid.SetProbability(ci, p), test.ShouldBeNil)
	}

	cropped := mapping.ComputeCroppedProbabilityGrid(grid)
	test.That(t, cropped.Limits().SizeX(), test.ShouldEqual, 5)
	test.That(t, cropped.Limits().SizeY(), test.ShouldEqual, 5)

	// Every known cell of the input appears with the same probability, at
	// the world position it had before cropping.
	for ci, p := range known {
		center := grid.Limits().CellCenter(ci)
		croppedIndex := cropped.Limits().GetCellIndex(center)
		test.That(t, cropped.IsKnown(croppedIndex), test.ShouldBeTrue)
		test.That(t, cropped.GetProbability(croppedIndex), test.ShouldAlmostEqual, p, 1e-3)
	}
}

func TestComputeCroppedProbabilityGridAllUnknown(t *testing.T) {
	cropped := mapping.ComputeCroppedProbabilityGrid(mapping.NewProbabilityGrid(testLimits()))
	test.That(t, cropped.Limits().SizeX(), test.ShouldEqual, 1)
	test.That(t, cropped.Limits().SizeY(), test.ShouldEqual, 1)
}

func TestLogOddsBytesRoundTrip(t *testing.T) {
	grid := mapping.NewProbabilityGrid(testLimits())
	test.That(t, grid.SetProbability(mapping.CellIndex{X: 1, Y: 2}, 0.55), test.ShouldBeNil)
	test.That(t, grid.SetProbability(mapping.CellIndex{X: 8, Y: 8}, 0.2), test.ShouldBeNil)

	data := grid.ToLogOddsBytes()
	test.That(t, len(data), test.ShouldEqual, 100)

	restored, err := mapping.ProbabilityGridFromLogOddsBytes(grid.Limits(), data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, restored.GetProbability(mapping.CellIndex{X: 1, Y: 2}), test.ShouldAlmostEqual, 0.55, 0.01)
	test.That(t, restored.GetProbability(mapping.CellIndex{X: 8, Y: 8}), test.ShouldAlmostEqual, 0.2, 0.01)
	test.That(t, restored.GetProbability(mapping.CellIndex{X: 0, Y: 0}), test.ShouldEqual, 0.5)

	_, err = mapping.ProbabilityGridFromLogOddsBytes(grid.Limits(), data[:10])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGridCopyIsDeep(t *testing.T) {
	grid := mapping.NewProbabilityGrid(testLimits())
	test.That(t, grid.SetProbability(mapping.CellIndex{X: 1, Y: 1}, 0.55), test.ShouldBeNil)

	copied := grid.Copy()
	table := mapping.ComputeLookupTableToApplyOdds(mapping.Odds(0.55))
	grid.ApplyLookupTable(mapping.CellIndex{X: 1, Y: 1}, table)
	grid.FinishUpdate()

	test.That(t, copied.GetProbability(mapping.CellIndex{X: 1, Y: 1}), test.ShouldAlmostEqual, 0.55, 1e-3)
	test.That(t, grid.GetProbability(mapping.CellIndex{X: 1, Y: 1}), test.ShouldBeGreaterThan, 0.55)
}
