// Package localslam sequences the local SLAM front-end: pose prediction,
// scan-to-submap matching, and range data insertion into the rolling pair
// of active submaps.
package localslam

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-modules/cartocore/scanmatching"
	"github.com/viam-modules/cartocore/sensors"
)

// PoseExtrapolator predicts the pose at a requested time by advancing the
// most recent scan-matched pose with velocities estimated from odometry.
// Without odometry it predicts a constant pose.
//
// AddOdometryData may be called from a different goroutine than the ingest
// goroutine driving AddPose and ExtrapolatePose.
type PoseExtrapolator struct {
	mu sync.Mutex

	havePose     bool
	lastPose     scanmatching.Pose2
	lastPoseTime time.Time

	odometry []sensors.OdometryData

	linearVelocity  r2.Point
	angularVelocity float64
	haveVelocity    bool
}

// NewPoseExtrapolator returns an extrapolator with no state; until the
// first AddPose it predicts the identity pose.
func NewPoseExtrapolator() *PoseExtrapolator {
	return &PoseExtrapolator{}
}

// AddPose records a scan-matched pose as the new extrapolation base.
func (e *PoseExtrapolator) AddPose(t time.Time, pose scanmatching.Pose2) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.havePose = true
	e.lastPose = pose
	e.lastPoseTime = t
}

// AddOdometryData feeds an odometry sample; two samples are enough to
// estimate linear and angular velocity.
func (e *PoseExtrapolator) AddOdometryData(od sensors.OdometryData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.odometry = append(e.odometry, od)
	if len(e.odometry) > 2 {
		e.odometry = e.odometry[len(e.odometry)-2:]
	}
	if len(e.odometry) < 2 {
		return
	}
	older, newer := e.odometry[0], e.odometry[1]
	dt := newer.Time.Sub(older.Time).Seconds()
	if dt <= 0 {
		return
	}
	yawDelta := yawBetween(older.Pose, newer.Pose)
	e.angularVelocity = yawDelta / dt

	// Velocity is kept in the tracking frame so it stays valid when the
	// odometry and local SLAM frames disagree.
	worldDelta := r2.Point{
		X: newer.Pose.Point().X - older.Pose.Point().X,
		Y: newer.Pose.Point().Y - older.Pose.Point().Y,
	}
	trackingDelta := rotate(worldDelta, -yaw(newer.Pose))
	e.linearVelocity = trackingDelta.Mul(1.0 / dt)
	e.haveVelocity = true
}

// ExtrapolatePose predicts the pose at time t from the last scan-matched
// pose and the current velocity estimate.
func (e *PoseExtrapolator) ExtrapolatePose(t time.Time) scanmatching.Pose2 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.havePose {
		return scanmatching.Pose2{}
	}
	if !e.haveVelocity {
		return e.lastPose
	}
	dt := t.Sub(e.lastPoseTime).Seconds()
	if dt <= 0 {
		return e.lastPose
	}
	worldVelocity := rotate(e.linearVelocity, e.lastPose.Rotation)
	return scanmatching.Pose2{
		Translation: e.lastPose.Translation.Add(worldVelocity.Mul(dt)),
		Rotation:    scanmatching.NormalizeAngle(e.lastPose.Rotation + e.angularVelocity*dt),
	}
}

// yaw extracts the rotation about the vertical axis from a pose.
func yaw(pose spatialmath.Pose) float64 {
	q := pose.Orientation().Quaternion()
	return yawOfQuaternion(q)
}

// yawBetween returns the yaw of the rotation taking the first pose's
// orientation to the second's.
func yawBetween(from, to spatialmath.Pose) float64 {
	relative := quat.Mul(quat.Conj(from.Orientation().Quaternion()), to.Orientation().Quaternion())
	return yawOfQuaternion(relative)
}

func yawOfQuaternion(q quat.Number) float64 {
	return math.Atan2(2.0*(q.Real*q.Kmag+q.Imag*q.Jmag), 1.0-2.0*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

func rotate(point r2.Point, angle float64) r2.Point {
	sin, cos := math.Sincos(angle)
	return r2.Point{
		X: cos*point.X - sin*point.Y,
		Y: sin*point.X + cos*point.Y,
	}
}
