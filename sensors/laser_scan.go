package sensors

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// LaserScan is one revolution of planar ranges from a scanning rangefinder,
// in the sensor frame.
type LaserScan struct {
	// MinAngle is the angle of the first range in radians.
	MinAngle float64
	// AngleIncrement is the angular distance between consecutive ranges.
	AngleIncrement float64
	// Ranges holds one measured distance per beam, in meters. Zero, NaN,
	// and infinite entries denote beams without a return.
	Ranges []float64
}

// ScanConverter turns laser scans into Cartesian returns and misses.
// Returns shorter than the minimum range are dropped; beams longer than
// the maximum range (or without a return) become free-space misses
// truncated to the missing data ray length.
type ScanConverter struct {
	minRange             float64
	maxRange             float64
	missingDataRayLength float64
}

// NewScanConverter validates the range limits and returns a converter.
func NewScanConverter(minRange, maxRange, missingDataRayLength float64) (*ScanConverter, error) {
	if minRange < 0 {
		return nil, errors.Errorf("min_range must not be negative, got %v", minRange)
	}
	if maxRange <= minRange {
		return nil, errors.Errorf("max_range must exceed min_range, got %v <= %v", maxRange, minRange)
	}
	if missingDataRayLength <= 0 {
		return nil, errors.Errorf("missing_data_ray_length must be positive, got %v", missingDataRayLength)
	}
	return &ScanConverter{
		minRange:             minRange,
		maxRange:             maxRange,
		missingDataRayLength: missingDataRayLength,
	}, nil
}

// Convert maps every beam of the scan to a return point or a miss point in
// the sensor frame.
func (c *ScanConverter) Convert(scan LaserScan) (points, misses []r3.Vector) {
	for i, beamRange := range scan.Ranges {
		angle := scan.MinAngle + float64(i)*scan.AngleIncrement
		sin, cos := math.Sincos(angle)
		switch {
		case beamRange == 0 || math.IsNaN(beamRange) || math.IsInf(beamRange, 0),
			beamRange > c.maxRange:
			misses = append(misses, r3.Vector{
				X: c.missingDataRayLength * cos,
				Y: c.missingDataRayLength * sin,
			})
		case beamRange < c.minRange:
			// Too close to trust; usually the robot's own body.
		default:
			points = append(points, r3.Vector{X: beamRange * cos, Y: beamRange * sin})
		}
	}
	return points, misses
}
