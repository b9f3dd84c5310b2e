package localslam

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-modules/cartocore/mapping"
	"github.com/viam-modules/cartocore/scanmatching"
	"github.com/viam-modules/cartocore/sensors"
)

// Options assemble the configuration of the local trajectory builder.
type Options struct {
	Submaps     mapping.SubmapsOptions
	ScanMatcher scanmatching.RealTimeCorrelativeScanMatcherOptions
}

// InsertionResult summarizes what one scan contributed: the refined pose
// it was inserted at, the matcher score (0 when the match was rejected and
// the odometry prediction was used instead), and the submaps it landed in.
type InsertionResult struct {
	Time    time.Time
	Pose    scanmatching.Pose2
	Score   float64
	Submaps []*mapping.Submap
}

// LocalTrajectoryBuilder sequences match, insert, and submap advancement
// for every incoming scan. All scan ingestion must happen on a single
// goroutine; odometry may arrive from another.
type LocalTrajectoryBuilder struct {
	logger        logging.Logger
	activeSubmaps *mapping.ActiveSubmaps
	matcher       *scanmatching.RealTimeCorrelativeScanMatcher
	extrapolator  *PoseExtrapolator

	mu       sync.Mutex
	lastPose scanmatching.Pose2
	lastTime time.Time
}

// NewLocalTrajectoryBuilder validates the options and returns a builder
// with no submaps yet.
func NewLocalTrajectoryBuilder(options Options, logger logging.Logger) (*LocalTrajectoryBuilder, error) {
	activeSubmaps, err := mapping.NewActiveSubmaps(options.Submaps)
	if err != nil {
		return nil, err
	}
	matcher, err := scanmatching.NewRealTimeCorrelativeScanMatcher(options.ScanMatcher)
	if err != nil {
		return nil, err
	}
	return &LocalTrajectoryBuilder{
		logger:        logger,
		activeSubmaps: activeSubmaps,
		matcher:       matcher,
		extrapolator:  NewPoseExtrapolator(),
	}, nil
}

// AddRangefinderData processes one revolution of rangefinder data given as
// an origin and return points in the sensor frame.
func (b *LocalTrajectoryBuilder) AddRangefinderData(
	ctx context.Context,
	t time.Time,
	origin r3.Vector,
	points []r3.Vector,
) (InsertionResult, error) {
	return b.AddLidarReading(ctx, sensors.TimedLidarReadingResponse{
		Origin:      origin,
		Points:      points,
		ReadingTime: t,
	})
}

// AddLidarReading matches the reading against the current matching submap,
// inserts it into every active submap at the refined pose, and advances
// the submap rotation when due.
func (b *LocalTrajectoryBuilder) AddLidarReading(
	ctx context.Context,
	reading sensors.TimedLidarReadingResponse,
) (InsertionResult, error) {
	_, span := trace.StartSpan(ctx, "cartocore::localslam::AddLidarReading")
	defer span.End()

	if len(reading.Points) == 0 && len(reading.Misses) == 0 {
		return InsertionResult{}, errors.New("lidar reading has no points")
	}

	pointCloud := projectToPlane(reading.Points)
	pose := b.extrapolator.ExtrapolatePose(reading.ReadingTime)

	score := 0.0
	if matchingSubmap := b.activeSubmaps.MatchingSubmap(); matchingSubmap != nil {
		refined, matchScore := b.matcher.Match(pose, pointCloud, matchingSubmap.Grid())
		if matchScore == 0 {
			b.logger.Debugw("scan match rejected as ambiguous, keeping pose prediction",
				"time", reading.ReadingTime)
		} else {
			pose = refined
			score = matchScore
		}
	}

	rangeData := mapping.RangeData{
		Origin:  pose.TransformPoint(planarPoint(reading.Origin)),
		Returns: transformAll(pointCloud, pose),
		Misses:  transformAll(projectToPlane(reading.Misses), pose),
	}
	if err := b.activeSubmaps.InsertRangeData(rangeData); err != nil {
		return InsertionResult{}, errors.Wrap(err, "inserting range data")
	}

	b.extrapolator.AddPose(reading.ReadingTime, pose)
	b.mu.Lock()
	b.lastPose = pose
	b.lastTime = reading.ReadingTime
	b.mu.Unlock()

	return InsertionResult{
		Time:    reading.ReadingTime,
		Pose:    pose,
		Score:   score,
		Submaps: b.activeSubmaps.Submaps(),
	}, nil
}

// AddOdometryData feeds an odometry sample into the pose extrapolator.
func (b *LocalTrajectoryBuilder) AddOdometryData(od sensors.OdometryData) {
	b.extrapolator.AddOdometryData(od)
}

// Position returns the most recent refined pose in the local SLAM frame.
func (b *LocalTrajectoryBuilder) Position() spatialmath.Pose {
	b.mu.Lock()
	defer b.mu.Unlock()
	return spatialmath.NewPose(
		r3.Vector{X: b.lastPose.Translation.X, Y: b.lastPose.Translation.Y},
		&spatialmath.OrientationVector{OZ: 1, Theta: b.lastPose.Rotation},
	)
}

// Submaps returns a snapshot of the active submap handles.
func (b *LocalTrajectoryBuilder) Submaps() []*mapping.Submap {
	return b.activeSubmaps.Submaps()
}

// MatchingIndex returns the index of the submap currently used for
// matching.
func (b *LocalTrajectoryBuilder) MatchingIndex() int {
	return b.activeSubmaps.MatchingIndex()
}

// projectToPlane drops the vertical component of the points; the core is
// planar and the adapter keeps scans level.
func projectToPlane(points []r3.Vector) []r2.Point {
	planar := make([]r2.Point, len(points))
	for i, point := range points {
		planar[i] = r2.Point{X: point.X, Y: point.Y}
	}
	return planar
}

func planarPoint(point r3.Vector) r2.Point {
	return r2.Point{X: point.X, Y: point.Y}
}

func transformAll(points []r2.Point, pose scanmatching.Pose2) []r2.Point {
	transformed := make([]r2.Point, len(points))
	for i, point := range points {
		transformed[i] = pose.TransformPoint(point)
	}
	return transformed
}
