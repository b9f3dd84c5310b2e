// Package postprocess contains functionality to postprocess pointcloud
// maps produced by the core: manually adding points for known obstacles
// the lidar cannot see, or removing spurious ones.
package postprocess

import (
	"bytes"
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/pointcloud"
)

// Instruction describes the action of a postprocess step.
type Instruction int

const (
	// Add is the instruction for adding points.
	Add Instruction = iota
	// Remove is the instruction for removing points.
	Remove
)

const (
	fullConfidence = 100
	// removalRadius is how close, in meters, an existing map point must be
	// to a requested removal point to be dropped.
	removalRadius = 0.1
	xKey          = "X"
	yKey          = "Y"

	// ToggleCommand can be used to turn postprocessing on and off.
	ToggleCommand = "postprocess_toggle"
	// AddCommand can be used to add points to the pointcloud map.
	AddCommand = "postprocess_add"
	// RemoveCommand can be used to remove points from the pointcloud map.
	RemoveCommand = "postprocess_remove"
	// UndoCommand can be used to undo the last postprocessing step.
	UndoCommand = "postprocess_undo"
)

var (
	// ErrPointsNotASlice denotes that the points have not been properly
	// formatted as a slice.
	ErrPointsNotASlice = errors.New("could not parse provided points as a slice")

	// ErrPointNotAMap denotes that a point has not been properly formatted
	// as a map.
	ErrPointNotAMap = errors.New("could not parse provided point as a map")

	// ErrXNotProvided denotes that an X value was not provided.
	ErrXNotProvided = errors.New("X was not provided")

	// ErrXNotFloat64 denotes that an X value is not a float64.
	ErrXNotFloat64 = errors.New("could not parse provided X as a float64")

	// ErrYNotProvided denotes that a Y value was not provided.
	ErrYNotProvided = errors.New("Y was not provided")

	// ErrYNotFloat64 denotes that a Y value is not a float64.
	ErrYNotFloat64 = errors.New("could not parse provided Y as a float64")

	// ErrRemovingPoints denotes that something unexpected happened during
	// removal.
	ErrRemovingPoints = errors.New("unexpected number of points after removal")
)

// Task describes one postprocessing step.
type Task struct {
	Instruction Instruction
	Points      []r3.Vector
}

// ParseDoCommand parses unstructured command input into a Task.
func ParseDoCommand(unstructuredPoints interface{}, instruction Instruction) (Task, error) {
	pointSlice, ok := unstructuredPoints.([]interface{})
	if !ok {
		return Task{}, ErrPointsNotASlice
	}

	task := Task{Instruction: instruction}
	for _, point := range pointSlice {
		pointMap, ok := point.(map[string]interface{})
		if !ok {
			return Task{}, ErrPointNotAMap
		}

		x, ok := pointMap[xKey]
		if !ok {
			return Task{}, ErrXNotProvided
		}
		xFloat, ok := x.(float64)
		if !ok {
			return Task{}, ErrXNotFloat64
		}

		y, ok := pointMap[yKey]
		if !ok {
			return Task{}, ErrYNotProvided
		}
		yFloat, ok := y.(float64)
		if !ok {
			return Task{}, ErrYNotFloat64
		}

		task.Points = append(task.Points, r3.Vector{X: xFloat, Y: yFloat})
	}
	return task, nil
}

// UpdatePointCloud iterates through a list of tasks, adds or removes
// points from data, and writes the updated pointcloud to updatedData.
func UpdatePointCloud(data []byte, updatedData *[]byte, tasks []Task) error {
	*updatedData = append(*updatedData, data...)

	for _, task := range tasks {
		switch task.Instruction {
		case Add:
			if err := updatePointCloudWithAddedPoints(updatedData, task.Points); err != nil {
				return err
			}
		case Remove:
			if err := updatePointCloudWithRemovedPoints(updatedData, task.Points); err != nil {
				return err
			}
		}
	}
	return nil
}

func updatePointCloudWithAddedPoints(updatedData *[]byte, points []r3.Vector) error {
	reader := bytes.NewReader(*updatedData)
	pc, err := pointcloud.ReadPCD(reader)
	if err != nil {
		return err
	}

	for _, point := range points {
		// Added points carry full occupancy confidence, encoded in the
		// blue channel the way the map export does.
		if err := pc.Set(point, pointcloud.NewColoredData(color.NRGBA{B: fullConfidence})); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := pointcloud.ToPCD(pc, &buf, pointcloud.PCDBinary); err != nil {
		return err
	}

	*updatedData = make([]byte, buf.Len())
	copy(*updatedData, buf.Bytes())
	return nil
}

func updatePointCloudWithRemovedPoints(updatedData *[]byte, points []r3.Vector) error {
	reader := bytes.NewReader(*updatedData)
	pc, err := pointcloud.ReadPCD(reader)
	if err != nil {
		return err
	}

	updatedPC := pointcloud.NewWithPrealloc(pc.Size() - len(points))
	pointsVisited := 0

	filterRemovedPoints := func(p r3.Vector, d pointcloud.Data) bool {
		pointsVisited++
		for _, point := range points {
			if point.Distance(p) <= removalRadius {
				return true
			}
		}
		// End early if a point cannot be copied over.
		return updatedPC.Set(p, d) == nil
	}
	pc.Iterate(0, 0, filterRemovedPoints)

	// Iteration ending early means copying a valid point failed.
	if pc.Size() != pointsVisited {
		return ErrRemovingPoints
	}

	var buf bytes.Buffer
	if err := pointcloud.ToPCD(updatedPC, &buf, pointcloud.PCDBinary); err != nil {
		return err
	}

	*updatedData = make([]byte, buf.Len())
	copy(*updatedData, buf.Bytes())
	return nil
}
