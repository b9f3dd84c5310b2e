package scanmatching

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/viam-modules/cartocore/mapping"
)

// LinearBounds hold the inclusive cell offset range searched for one
// rotated scan.
type LinearBounds struct {
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// SearchParameters derive the discrete SE(2) search region from a scan's
// extent: the angular step is chosen so that at the scan's farthest point
// one step shifts the point by at most one cell.
type SearchParameters struct {
	NumAngularPerturbations     int
	AngularPerturbationStepSize float64
	Resolution                  float64
	NumScans                    int
	LinearBounds                []LinearBounds
}

// NewSearchParameters computes the search bounds for the given windows,
// point cloud, and grid resolution. The scan range used for the angular
// step is floored at a few cells so near-empty scans keep a finite step.
func NewSearchParameters(
	linearSearchWindow, angularSearchWindow float64,
	pointCloud []r2.Point,
	resolution float64,
) SearchParameters {
	maxScanRange := 3.0 * resolution
	for _, point := range pointCloud {
		if r := point.Norm(); r > maxScanRange {
			maxScanRange = r
		}
	}
	angularStep := math.Acos(1.0 - resolution*resolution/(2.0*maxScanRange*maxScanRange))
	numAngularPerturbations := int(math.Ceil(angularSearchWindow / angularStep))
	numScans := 2*numAngularPerturbations + 1

	numLinearPerturbations := int(math.Ceil(linearSearchWindow / resolution))
	linearBounds := make([]LinearBounds, numScans)
	for i := range linearBounds {
		linearBounds[i] = LinearBounds{
			MinX: -numLinearPerturbations,
			MaxX: numLinearPerturbations,
			MinY: -numLinearPerturbations,
			MaxY: numLinearPerturbations,
		}
	}
	return SearchParameters{
		NumAngularPerturbations:     numAngularPerturbations,
		AngularPerturbationStepSize: angularStep,
		Resolution:                  resolution,
		NumScans:                    numScans,
		LinearBounds:                linearBounds,
	}
}

// ShrinkToFit intersects each scan's linear bounds with the offsets that
// keep the scan's cell bounding box inside a grid of sizeX by sizeY cells.
func (p *SearchParameters) ShrinkToFit(scans [][]mapping.CellIndex, sizeX, sizeY int) {
	for i, scan := range scans {
		if len(scan) == 0 {
			continue
		}
		boxMin, boxMax := scan[0], scan[0]
		for _, ci := range scan[1:] {
			if ci.X < boxMin.X {
				boxMin.X = ci.X
			}
			if ci.Y < boxMin.Y {
				boxMin.Y = ci.Y
			}
			if ci.X > boxMax.X {
				boxMax.X = ci.X
			}
			if ci.Y > boxMax.Y {
				boxMax.Y = ci.Y
			}
		}
		bounds := &p.LinearBounds[i]
		bounds.MinX = maxInt(bounds.MinX, -boxMin.X)
		bounds.MaxX = minInt(bounds.MaxX, sizeX-1-boxMax.X)
		bounds.MinY = maxInt(bounds.MinY, -boxMin.Y)
		bounds.MaxY = minInt(bounds.MaxY, sizeY-1-boxMax.Y)
	}
}

// GenerateRotatedScans returns NumScans copies of the point cloud rotated
// by k times the angular step for k in [-n, n].
func GenerateRotatedScans(pointCloud []r2.Point, params SearchParameters) [][]r2.Point {
	rotatedScans := make([][]r2.Point, 0, params.NumScans)
	deltaTheta := -float64(params.NumAngularPerturbations) * params.AngularPerturbationStepSize
	for i := 0; i < params.NumScans; i++ {
		theta := deltaTheta + float64(i)*params.AngularPerturbationStepSize
		rotated := make([]r2.Point, len(pointCloud))
		for j, point := range pointCloud {
			rotated[j] = rotatePoint(point, theta)
		}
		rotatedScans = append(rotatedScans, rotated)
	}
	return rotatedScans
}

// DiscretizeScans translates every rotated scan by the initial estimate and
// converts its points to cell indices, producing the cells each scan would
// hit at offset (0, 0).
func DiscretizeScans(
	limits mapping.MapLimits,
	scans [][]r2.Point,
	initialTranslation r2.Point,
) [][]mapping.CellIndex {
	discreteScans := make([][]mapping.CellIndex, 0, len(scans))
	for _, scan := range scans {
		discrete := make([]mapping.CellIndex, len(scan))
		for i, point := range scan {
			discrete[i] = limits.GetCellIndex(point.Add(initialTranslation))
		}
		discreteScans = append(discreteScans, discrete)
	}
	return discreteScans
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
