// Package sensors defines the sensor data types and timed sensor
// interfaces consumed by the local SLAM core.
package sensors

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// TimedLidarReadingResponse is one revolution of rangefinder data together
// with the time it was taken. Points and misses are in the sensor frame;
// the adapter has already resolved extrinsics.
type TimedLidarReadingResponse struct {
	// Origin is the sensor origin the rays emanate from.
	Origin r3.Vector
	// Points are the return points.
	Points []r3.Vector
	// Misses are free-space endpoints of rays that did not return.
	Misses []r3.Vector
	// ReadingTime is when the revolution was taken.
	ReadingTime time.Time
}

// TimedLidar describes a rangefinder that reports the time each reading is
// from.
type TimedLidar interface {
	Name() string
	DataFrequencyHz() int
	TimedLidarReading(ctx context.Context) (TimedLidarReadingResponse, error)
}

// OdometryData is a timestamped odometry pose in the odometry frame.
type OdometryData struct {
	Time time.Time
	Pose spatialmath.Pose
}

// TimedOdometer describes an odometry source that reports the time each
// reading is from.
type TimedOdometer interface {
	Name() string
	DataFrequencyHz() int
	TimedOdometerReading(ctx context.Context) (OdometryData, error)
}
