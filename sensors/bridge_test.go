package sensors_test

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/viam-modules/cartocore/sensors"
)

func TestBridgeAppliesExtrinsic(t *testing.T) {
	bridge := sensors.NewBridge(0.1, 0.05, 0)
	now := time.Now()

	baselinkPose := spatialmath.NewPoseFromPoint(r3.Vector{X: 1.0, Y: 2.0})
	od := bridge.ToOdometryData(now, baselinkPose)

	test.That(t, od.Time, test.ShouldEqual, now)
	test.That(t, od.Pose.Point().X, test.ShouldAlmostEqual, 1.1, 1e-9)
	test.That(t, od.Pose.Point().Y, test.ShouldAlmostEqual, 2.05, 1e-9)
}

func TestBridgeZeroExtrinsicIsIdentity(t *testing.T) {
	bridge := sensors.NewBridge(0, 0, 0)
	pose := spatialmath.NewPoseFromPoint(r3.Vector{X: -3.0, Y: 0.5})
	od := bridge.ToOdometryData(time.Now(), pose)
	test.That(t, spatialmath.PoseAlmostEqual(od.Pose, pose), test.ShouldBeTrue)
}

func TestBridgeRotatedExtrinsic(t *testing.T) {
	// A baselink yawed 90 degrees: the extrinsic offset rotates with the
	// baselink orientation.
	bridge := sensors.NewBridge(1.0, 0, 0)
	baselink := spatialmath.NewPose(
		r3.Vector{},
		&spatialmath.OrientationVector{OZ: 1, Theta: 3.141592653589793 / 2},
	)
	od := bridge.ToOdometryData(time.Now(), baselink)
	test.That(t, od.Pose.Point().X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, od.Pose.Point().Y, test.ShouldAlmostEqual, 1.0, 1e-9)
}
