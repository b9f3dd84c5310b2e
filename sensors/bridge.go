package sensors

import (
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// Bridge converts raw sensor messages into the core's data types. Odometry
// is usually reported for the robot baselink while scans are taken in the
// laser frame, so the bridge composes every odometry pose with the
// baselink-to-laser extrinsic.
type Bridge struct {
	baselinkToLaser spatialmath.Pose
}

// NewBridge returns a bridge for a laser mounted at the planar offset
// (x, y) and yaw theta relative to the baselink.
func NewBridge(x, y, theta float64) *Bridge {
	var orientation spatialmath.Orientation = spatialmath.NewZeroOrientation()
	if theta != 0 {
		orientation = &spatialmath.OrientationVector{OZ: 1, Theta: theta}
	}
	return &Bridge{
		baselinkToLaser: spatialmath.NewPose(r3.Vector{X: x, Y: y}, orientation),
	}
}

// ToOdometryData expresses a baselink odometry pose in the laser frame.
func (b *Bridge) ToOdometryData(t time.Time, pose spatialmath.Pose) OdometryData {
	return OdometryData{Time: t, Pose: spatialmath.Compose(pose, b.baselinkToLaser)}
}
