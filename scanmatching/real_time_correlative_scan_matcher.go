package scanmatching

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/viam-modules/cartocore/mapping"
)

const (
	defaultAmbiguityScoreRatio = 0.95
	defaultAmbiguityDistance   = 0.2
)

// Candidate is one pose hypothesis of the exhaustive search: a rotated scan
// index plus a cell offset, together with the continuous pose delta they
// represent and the score assigned to it.
type Candidate struct {
	ScanIndex    int
	XIndexOffset int
	YIndexOffset int

	// X, Y, Orientation are the continuous pose delta relative to the
	// initial estimate. Increasing a cell index by one moves the scan by
	// minus one resolution in world coordinates.
	X           float64
	Y           float64
	Orientation float64

	Score float64
}

// RealTimeCorrelativeScanMatcherOptions configure the search window, the
// motion penalty, and the ambiguity rejection policy.
type RealTimeCorrelativeScanMatcherOptions struct {
	// LinearSearchWindow is the translation search half-width in meters.
	LinearSearchWindow float64
	// AngularSearchWindow is the rotation search half-width in radians.
	AngularSearchWindow float64
	// TranslationDeltaCostWeight and RotationDeltaCostWeight scale the
	// penalty applied to candidates away from the initial estimate.
	TranslationDeltaCostWeight float64
	RotationDeltaCostWeight    float64
	// AmbiguityScoreRatio and AmbiguityDistance reject a match when a
	// near-best candidate lies far from the best one. Zero values select
	// the defaults of 0.95 and 0.2 m.
	AmbiguityScoreRatio float64
	AmbiguityDistance   float64
}

// Validate returns an error describing the first invalid option.
func (o RealTimeCorrelativeScanMatcherOptions) Validate() error {
	if o.LinearSearchWindow < 0 {
		return errors.Errorf("linear_search_window must not be negative, got %v", o.LinearSearchWindow)
	}
	if o.AngularSearchWindow < 0 {
		return errors.Errorf("angular_search_window must not be negative, got %v", o.AngularSearchWindow)
	}
	if o.TranslationDeltaCostWeight < 0 {
		return errors.Errorf("translation_delta_cost_weight must not be negative, got %v", o.TranslationDeltaCostWeight)
	}
	if o.RotationDeltaCostWeight < 0 {
		return errors.Errorf("rotation_delta_cost_weight must not be negative, got %v", o.RotationDeltaCostWeight)
	}
	if o.AmbiguityScoreRatio < 0 || o.AmbiguityScoreRatio > 1 {
		return errors.Errorf("ambiguity_score_ratio must be in (0, 1], got %v", o.AmbiguityScoreRatio)
	}
	if o.AmbiguityDistance < 0 {
		return errors.Errorf("ambiguity_distance must not be negative, got %v", o.AmbiguityDistance)
	}
	return nil
}

// RealTimeCorrelativeScanMatcher scores every pose in a discretized SE(2)
// window against a probability grid and returns the best one. It reads the
// grid but never writes.
type RealTimeCorrelativeScanMatcher struct {
	options RealTimeCorrelativeScanMatcherOptions
}

// NewRealTimeCorrelativeScanMatcher returns a matcher for the given
// options, filling in the default ambiguity policy where unset.
func NewRealTimeCorrelativeScanMatcher(
	options RealTimeCorrelativeScanMatcherOptions,
) (*RealTimeCorrelativeScanMatcher, error) {
	if options.AmbiguityScoreRatio == 0 {
		options.AmbiguityScoreRatio = defaultAmbiguityScoreRatio
	}
	if options.AmbiguityDistance == 0 {
		options.AmbiguityDistance = defaultAmbiguityDistance
	}
	if err := options.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scan matcher options")
	}
	return &RealTimeCorrelativeScanMatcher{options: options}, nil
}

// Match searches the window around the initial pose estimate for the pose
// that best explains the point cloud given the grid. It returns the refined
// pose and its score in (0, 1]. A score of 0 means the match was rejected
// as ambiguous (or the search was empty) and the caller should fall back to
// its own policy; the returned pose is then the initial estimate.
func (m *RealTimeCorrelativeScanMatcher) Match(
	initialPose Pose2,
	pointCloud []r2.Point,
	grid *mapping.ProbabilityGrid,
) (Pose2, float64) {
	if len(pointCloud) == 0 {
		return initialPose, 0
	}

	rotated := make([]r2.Point, len(pointCloud))
	for i, point := range pointCloud {
		rotated[i] = rotatePoint(point, initialPose.Rotation)
	}
	limits := grid.Limits()
	params := NewSearchParameters(
		m.options.LinearSearchWindow, m.options.AngularSearchWindow, rotated, limits.Resolution())

	rotatedScans := GenerateRotatedScans(rotated, params)
	discreteScans := DiscretizeScans(limits, rotatedScans, initialPose.Translation)
	params.ShrinkToFit(discreteScans, limits.SizeX(), limits.SizeY())

	candidates := generateExhaustiveSearchCandidates(params)
	if len(candidates) == 0 {
		return initialPose, 0
	}
	m.scoreCandidates(grid, discreteScans, candidates)

	sort.Slice(candidates, func(i, j int) bool {
		return candidateGreater(candidates[i], candidates[j])
	})
	best := candidates[0]

	// Ambiguity rejection: a near-best candidate far from the best one
	// means the window contains two plausible alignments.
	for _, candidate := range candidates[1:] {
		if candidate.Score < m.options.AmbiguityScoreRatio*best.Score {
			break
		}
		if math.Hypot(candidate.X-best.X, candidate.Y-best.Y) >= m.options.AmbiguityDistance {
			return initialPose, 0
		}
	}

	refined := Pose2{
		Translation: initialPose.Translation.Add(r2.Point{X: best.X, Y: best.Y}),
		Rotation:    NormalizeAngle(initialPose.Rotation + best.Orientation),
	}
	return refined, best.Score
}

// candidateGreater orders candidates descending by the lexicographic tuple
// (score, scan index, x offset, y offset).
func candidateGreater(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ScanIndex != b.ScanIndex {
		return a.ScanIndex > b.ScanIndex
	}
	if a.XIndexOffset != b.XIndexOffset {
		return a.XIndexOffset > b.XIndexOffset
	}
	return a.YIndexOffset > b.YIndexOffset
}

func generateExhaustiveSearchCandidates(params SearchParameters) []Candidate {
	numCandidates := 0
	for scanIndex := 0; scanIndex < params.NumScans; scanIndex++ {
		bounds := params.LinearBounds[scanIndex]
		if bounds.MaxX < bounds.MinX || bounds.MaxY < bounds.MinY {
			continue
		}
		numCandidates += (bounds.MaxX - bounds.MinX + 1) * (bounds.MaxY - bounds.MinY + 1)
	}
	candidates := make([]Candidate, 0, numCandidates)
	for scanIndex := 0; scanIndex < params.NumScans; scanIndex++ {
		bounds := params.LinearBounds[scanIndex]
		orientation := float64(scanIndex-params.NumAngularPerturbations) * params.AngularPerturbationStepSize
		for xOffset := bounds.MinX; xOffset <= bounds.MaxX; xOffset++ {
			for yOffset := bounds.MinY; yOffset <= bounds.MaxY; yOffset++ {
				candidates = append(candidates, Candidate{
					ScanIndex:    scanIndex,
					XIndexOffset: xOffset,
					YIndexOffset: yOffset,
					X:            -float64(xOffset) * params.Resolution,
					Y:            -float64(yOffset) * params.Resolution,
					Orientation:  orientation,
				})
			}
		}
	}
	return candidates
}

// scoreCandidates assigns every candidate the mean probability of its
// shifted scan cells, discounted by the motion penalty
// exp(-(|t| * translationWeight + |theta| * rotationWeight)^2).
func (m *RealTimeCorrelativeScanMatcher) scoreCandidates(
	grid *mapping.ProbabilityGrid,
	discreteScans [][]mapping.CellIndex,
	candidates []Candidate,
) {
	for i := range candidates {
		candidate := &candidates[i]
		scan := discreteScans[candidate.ScanIndex]
		score := 0.0
		for _, ci := range scan {
			score += grid.GetProbability(mapping.CellIndex{
				X: ci.X + candidate.XIndexOffset,
				Y: ci.Y + candidate.YIndexOffset,
			})
		}
		score /= float64(len(scan))
		score *= math.Exp(-math.Pow(
			math.Hypot(candidate.X, candidate.Y)*m.options.TranslationDeltaCostWeight+
				math.Abs(candidate.Orientation)*m.options.RotationDeltaCostWeight, 2))
		candidate.Score = score
	}
}
