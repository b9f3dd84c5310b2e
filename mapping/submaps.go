package mapping

import (
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
)

// ErrSubmapFinished is returned when range data is inserted into a submap
// that has already been finished.
var ErrSubmapFinished = errors.New("submap is already finished")

// Submap is a finite occupancy grid covering a local region, built from a
// bounded number of consecutive scans. Once finished it is immutable and
// safe to read from any goroutine.
//
// Insertion is single-writer by contract: only the ingest goroutine may
// call InsertRangeData. The mutex covers Finish publication and grid
// snapshots only; readers on other goroutines must use GridCopy.
type Submap struct {
	localPose    spatialmath.Pose
	numRangeData atomic.Uint32

	mu       sync.Mutex
	grid     *ProbabilityGrid
	finished bool
}

// NewSubmap returns an unfinished submap whose grid of sizeCells by
// sizeCells cells is centered on origin.
func NewSubmap(resolution float64, sizeCells int, origin r2.Point) *Submap {
	halfExtent := float64(sizeCells) * resolution / 2.0
	max := r2.Point{X: origin.X + halfExtent, Y: origin.Y + halfExtent}
	return &Submap{
		localPose: spatialmath.NewPoseFromPoint(r3.Vector{X: origin.X, Y: origin.Y}),
		grid:      NewProbabilityGrid(NewMapLimits(resolution, max, sizeCells, sizeCells)),
	}
}

// LocalPose returns the submap origin in the local SLAM frame.
func (s *Submap) LocalPose() spatialmath.Pose {
	return s.localPose
}

// NumRangeData returns the number of range data revolutions inserted.
func (s *Submap) NumRangeData() int {
	return int(s.numRangeData.Load())
}

// Finished reports whether the submap has stopped accepting insertions.
func (s *Submap) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Grid returns the live grid for read-only use on the ingest goroutine.
// Other goroutines must use GridCopy.
func (s *Submap) Grid() *ProbabilityGrid {
	return s.grid
}

// InsertRangeData inserts one revolution of range data. The submap must not
// be finished.
func (s *Submap) InsertRangeData(rangeData RangeData, inserter *RangeDataInserter) error {
	if s.Finished() {
		return ErrSubmapFinished
	}
	inserter.Insert(rangeData, s.grid)
	s.numRangeData.Add(1)
	return nil
}

// Finish marks the submap immutable. After Finish returns, no further
// mutation is observable on any goroutine.
func (s *Submap) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

// GridCopy returns a deep copy of the grid taken under the submap mutex, so
// concurrent insertions are blocked for no longer than the copy takes.
func (s *Submap) GridCopy() *ProbabilityGrid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Copy()
}

// SubmapsOptions configure the rolling pair of active submaps.
type SubmapsOptions struct {
	// Resolution is the grid cell edge length in meters.
	Resolution float64
	// NumRangeData is the insertion count at which the newest submap is
	// considered initialized and the rotation advances.
	NumRangeData int
	// GridSizeCells is the submap grid extent per axis in cells.
	GridSizeCells int
	// RangeDataInserter configures hit and miss updates.
	RangeDataInserter RangeDataInserterOptions
}

// Validate returns an error describing the first invalid option.
func (o SubmapsOptions) Validate() error {
	if o.Resolution <= 0 {
		return errors.Errorf("resolution must be positive, got %v", o.Resolution)
	}
	if o.NumRangeData < 1 {
		return errors.Errorf("num_range_data must be at least 1, got %d", o.NumRangeData)
	}
	if o.GridSizeCells <= 0 {
		return errors.Errorf("grid size must be positive, got %d", o.GridSizeCells)
	}
	return o.RangeDataInserter.Validate()
}

// ActiveSubmaps maintains the rolling pair of submaps range data is
// inserted into. Except during initialization there are always two: an
// older one used for scan matching and a newer one being initialized. Once
// the newer submap has received NumRangeData insertions, the older one is
// finished and dropped, the newer becomes the matching submap, and a fresh
// submap is created at the current scan origin.
//
// Retirement only drops this object's handle; external holders of a
// finished submap may keep reading it.
type ActiveSubmaps struct {
	options  SubmapsOptions
	inserter *RangeDataInserter

	mu            sync.Mutex
	matchingIndex int
	submaps       []*Submap
}

// NewActiveSubmaps returns an empty submap collection; the first inserted
// scan creates the first submap at its origin.
func NewActiveSubmaps(options SubmapsOptions) (*ActiveSubmaps, error) {
	if err := options.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid submaps options")
	}
	inserter, err := NewRangeDataInserter(options.RangeDataInserter)
	if err != nil {
		return nil, err
	}
	return &ActiveSubmaps{options: options, inserter: inserter}, nil
}

// MatchingIndex returns the index of the newest initialized submap usable
// for scan-to-map matching. It increases by one on every rotation.
func (a *ActiveSubmaps) MatchingIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matchingIndex
}

// MatchingSubmap returns the submap scans are currently matched against, or
// nil before the first insertion.
func (a *ActiveSubmaps) MatchingSubmap() *Submap {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.submaps) == 0 {
		return nil
	}
	return a.submaps[0]
}

// Submaps returns a snapshot of the current submap handles.
func (a *ActiveSubmaps) Submaps() []*Submap {
	a.mu.Lock()
	defer a.mu.Unlock()
	submaps := make([]*Submap, len(a.submaps))
	copy(submaps, a.submaps)
	return submaps
}

// InsertRangeData inserts one revolution of range data into every active
// submap and advances the rotation once the newest submap is initialized.
// Must be called from the ingest goroutine only.
func (a *ActiveSubmaps) InsertRangeData(rangeData RangeData) error {
	if len(a.submaps) == 0 {
		a.addSubmap(rangeData.Origin)
	}
	for _, submap := range a.submaps {
		if err := submap.InsertRangeData(rangeData, a.inserter); err != nil {
			return err
		}
	}
	if a.submaps[len(a.submaps)-1].NumRangeData() == a.options.NumRangeData {
		a.addSubmap(rangeData.Origin)
	}
	return nil
}

// addSubmap appends a fresh submap at origin, retiring the front submap
// first when two are already active.
func (a *ActiveSubmaps) addSubmap(origin r2.Point) {
	submap := NewSubmap(a.options.Resolution, a.options.GridSizeCells, origin)
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.submaps) > 1 {
		a.submaps[0].Finish()
		a.matchingIndex++
		a.submaps = a.submaps[1:]
	}
	a.submaps = append(a.submaps, submap)
}
