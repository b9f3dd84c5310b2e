// Package scanmatching implements the real-time correlative scan matcher:
// an exhaustive search over a discretized SE(2) window that aligns a scan
// against a submap's probability grid before insertion.
package scanmatching

import (
	"math"

	"github.com/golang/geo/r2"
)

// Pose2 is a rigid transform in the plane: a translation plus a rotation
// about the vertical axis in radians.
type Pose2 struct {
	Translation r2.Point
	Rotation    float64
}

// TransformPoint applies the pose to a point.
func (p Pose2) TransformPoint(point r2.Point) r2.Point {
	sin, cos := math.Sincos(p.Rotation)
	return r2.Point{
		X: cos*point.X - sin*point.Y + p.Translation.X,
		Y: sin*point.X + cos*point.Y + p.Translation.Y,
	}
}

// Compose returns the pose equivalent to applying other first and p second.
func (p Pose2) Compose(other Pose2) Pose2 {
	return Pose2{
		Translation: p.TransformPoint(other.Translation),
		Rotation:    NormalizeAngle(p.Rotation + other.Rotation),
	}
}

// NormalizeAngle wraps an angle to (-pi, pi].
func NormalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// rotatePoint rotates a point about the origin.
func rotatePoint(point r2.Point, angle float64) r2.Point {
	sin, cos := math.Sincos(angle)
	return r2.Point{
		X: cos*point.X - sin*point.Y,
		Y: sin*point.X + cos*point.Y,
	}
}
