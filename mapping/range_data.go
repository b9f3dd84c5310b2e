package mapping

import "github.com/golang/geo/r2"

// RangeData is one revolution of rangefinder data expressed in the submap's
// local frame: the sensor origin, the return points, and the free-space
// endpoints of rays that did not return.
type RangeData struct {
	Origin  r2.Point
	Returns []r2.Point
	Misses  []r2.Point
}
