// Package cartocore implements the online front-end of a 2D lidar SLAM
// pipeline: it continuously estimates the sensor's pose in a locally
// consistent frame and accumulates an occupancy probability map composed
// of overlapping submaps.
package cartocore

import (
	"bytes"
	"context"
	"encoding/binary"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-modules/cartocore/config"
	"github.com/viam-modules/cartocore/dataprocess"
	"github.com/viam-modules/cartocore/localslam"
	"github.com/viam-modules/cartocore/mapping"
	"github.com/viam-modules/cartocore/postprocess"
	"github.com/viam-modules/cartocore/scanmatching"
	"github.com/viam-modules/cartocore/sensorprocess"
	"github.com/viam-modules/cartocore/sensors"
)

// ErrClosed denotes that a service method was called on a closed service.
var ErrClosed = errors.New("cartocore service is closed")

// internalStateMagic leads the internal state serialization so readers can
// reject foreign data.
const internalStateMagic = uint32(0x43435347) // "CCSG"

// CartographerService ties the local trajectory builder to its sensors:
// it runs the ingest goroutine, exposes the current pose, and exports the
// accumulated map.
type CartographerService struct {
	logger  logging.Logger
	params  config.Params
	builder *localslam.LocalTrajectoryBuilder
	lidar   sensors.TimedLidar

	cancelSensorProcessFunc context.CancelFunc
	sensorProcessWorkers    sync.WaitGroup
	closed                  atomic.Bool

	postprocessMu      sync.Mutex
	postprocessEnabled bool
	postprocessTasks   []postprocess.Task
}

// New validates the config, builds the trajectory builder, and, when a
// lidar is given, starts the sensor processes feeding it. A nil lidar
// leaves ingestion to direct AddLidarReading calls.
func New(
	ctx context.Context,
	cfg *config.Config,
	lidar sensors.TimedLidar,
	odometer sensors.TimedOdometer,
	logger logging.Logger,
) (*CartographerService, error) {
	ctx, span := trace.StartSpan(ctx, "cartocore::New")
	defer span.End()

	if err := cfg.Validate("cartocore"); err != nil {
		return nil, err
	}
	params := config.GetOptionalParameters(cfg, logger)
	if logger.Level() == zapcore.DebugLevel {
		logger.Debugf("resolved config: resolution=%v num_range_data=%d grid_size_cells=%d",
			params.Resolution, params.NumRangeData, params.GridSizeCells)
	}

	builder, err := localslam.NewLocalTrajectoryBuilder(builderOptions(params), logger)
	if err != nil {
		return nil, err
	}

	svc := &CartographerService{
		logger:  logger,
		params:  params,
		builder: builder,
		lidar:   lidar,
	}

	if lidar != nil {
		cancelCtx, cancelFunc := context.WithCancel(context.Background())
		svc.cancelSensorProcessFunc = cancelFunc
		svc.startSensorProcesses(cancelCtx, odometer)
	}
	return svc, nil
}

func builderOptions(params config.Params) localslam.Options {
	return localslam.Options{
		Submaps: mapping.SubmapsOptions{
			Resolution:    params.Resolution,
			NumRangeData:  params.NumRangeData,
			GridSizeCells: params.GridSizeCells,
			RangeDataInserter: mapping.RangeDataInserterOptions{
				HitProbability:  params.HitProbability,
				MissProbability: params.MissProbability,
				InsertFreeSpace: params.InsertFreeSpace,
			},
		},
		ScanMatcher: scanmatching.RealTimeCorrelativeScanMatcherOptions{
			LinearSearchWindow:         params.LinearSearchWindowM,
			AngularSearchWindow:        params.AngularSearchWindowRad,
			TranslationDeltaCostWeight: params.TranslationDeltaCostWeight,
			RotationDeltaCostWeight:    params.RotationDeltaCostWeight,
			AmbiguityScoreRatio:        params.AmbiguityScoreRatio,
			AmbiguityDistance:          params.AmbiguityDistanceM,
		},
	}
}

func (svc *CartographerService) startSensorProcesses(cancelCtx context.Context, odometer sensors.TimedOdometer) {
	spConfig := sensorprocess.Config{
		Builder:  svc.builder,
		Lidar:    svc.lidar,
		Odometer: odometer,
		Logger:   svc.logger,
	}

	svc.sensorProcessWorkers.Add(1)
	go func() {
		defer svc.sensorProcessWorkers.Done()
		spConfig.StartLidar(cancelCtx)
	}()

	if odometer != nil {
		svc.sensorProcessWorkers.Add(1)
		go func() {
			defer svc.sensorProcessWorkers.Done()
			spConfig.StartOdometer(cancelCtx)
		}()
	}
}

// AddLidarReading feeds one revolution of rangefinder data directly into
// the trajectory builder. Only valid when the service was constructed
// without a lidar; the sensor processes own ingestion otherwise.
func (svc *CartographerService) AddLidarReading(
	ctx context.Context,
	reading sensors.TimedLidarReadingResponse,
) (localslam.InsertionResult, error) {
	if svc.closed.Load() {
		return localslam.InsertionResult{}, ErrClosed
	}
	if svc.lidar != nil {
		return localslam.InsertionResult{}, errors.New("service ingests from its own lidar; cannot add readings directly")
	}
	return svc.builder.AddLidarReading(ctx, reading)
}

// AddOdometryData feeds an odometry sample into the pose extrapolator.
func (svc *CartographerService) AddOdometryData(od sensors.OdometryData) error {
	if svc.closed.Load() {
		return ErrClosed
	}
	svc.builder.AddOdometryData(od)
	return nil
}

// Position returns the most recent refined pose in the local SLAM frame.
func (svc *CartographerService) Position(ctx context.Context) (spatialmath.Pose, error) {
	_, span := trace.StartSpan(ctx, "cartocore::CartographerService::Position")
	defer span.End()
	if svc.closed.Load() {
		return nil, ErrClosed
	}
	return svc.builder.Position(), nil
}

// SubmapSnapshots returns the current submap handles. Finished submaps
// are immutable; unfinished ones must be read through GridCopy.
func (svc *CartographerService) SubmapSnapshots() ([]*mapping.Submap, error) {
	if svc.closed.Load() {
		return nil, ErrClosed
	}
	return svc.builder.Submaps(), nil
}

// PointCloudMap exports the occupied cells of all active submaps as a
// binary PCD. Occupancy confidence is encoded in the blue channel on a
// scale from 1-100, which is how downstream consumers expect it.
func (svc *CartographerService) PointCloudMap(ctx context.Context) ([]byte, error) {
	_, span := trace.StartSpan(ctx, "cartocore::CartographerService::PointCloudMap")
	defer span.End()
	if svc.closed.Load() {
		return nil, ErrClosed
	}

	pcMap := pointcloud.New()
	var errs error
	for _, submap := range svc.builder.Submaps() {
		grid := submap.GridCopy()
		limits := grid.Limits()
		for y := 0; y < limits.SizeY(); y++ {
			for x := 0; x < limits.SizeX(); x++ {
				ci := mapping.CellIndex{X: x, Y: y}
				probability := grid.GetProbability(ci)
				if !grid.IsKnown(ci) || probability <= 0.5 {
					continue
				}
				center := limits.CellCenter(ci)
				errs = multierr.Append(errs, pcMap.Set(
					r3.Vector{X: center.X, Y: center.Y},
					pointcloud.NewColoredData(color.NRGBA{B: uint8(probability * 100)}),
				))
			}
		}
	}
	if errs != nil {
		return nil, errs
	}

	buf := bytes.Buffer{}
	if err := pointcloud.ToPCD(pcMap, &buf, pointcloud.PCDBinary); err != nil {
		return nil, err
	}

	svc.postprocessMu.Lock()
	defer svc.postprocessMu.Unlock()
	if svc.postprocessEnabled && len(svc.postprocessTasks) > 0 {
		var updated []byte
		if err := postprocess.UpdatePointCloud(buf.Bytes(), &updated, svc.postprocessTasks); err != nil {
			return nil, err
		}
		return updated, nil
	}
	return buf.Bytes(), nil
}

// InternalState serializes the matching submap's cropped grid using the
// log-odds byte encoding, preceded by a small header describing its
// limits.
func (svc *CartographerService) InternalState(ctx context.Context) ([]byte, error) {
	_, span := trace.StartSpan(ctx, "cartocore::CartographerService::InternalState")
	defer span.End()
	if svc.closed.Load() {
		return nil, ErrClosed
	}

	submaps, err := svc.SubmapSnapshots()
	if err != nil {
		return nil, err
	}
	if len(submaps) == 0 {
		return nil, errors.New("no submaps to serialize yet")
	}

	grid := mapping.ComputeCroppedProbabilityGrid(submaps[0].GridCopy())
	limits := grid.Limits()

	buf := bytes.Buffer{}
	for _, field := range []interface{}{
		internalStateMagic,
		limits.Resolution(),
		limits.Max().X,
		limits.Max().Y,
		uint32(limits.SizeX()),
		uint32(limits.SizeY()),
	} {
		if err := binary.Write(&buf, binary.LittleEndian, field); err != nil {
			return nil, err
		}
	}
	buf.Write(grid.ToLogOddsBytes())
	return buf.Bytes(), nil
}

// SaveMap writes the current pointcloud map to the configured data
// directory and returns the filename.
func (svc *CartographerService) SaveMap(ctx context.Context) (string, error) {
	if svc.params.DataDirectory == "" {
		return "", errors.New("no data_dir configured")
	}
	data, err := svc.PointCloudMap(ctx)
	if err != nil {
		return "", err
	}
	name := "map"
	if svc.lidar != nil {
		name = svc.lidar.Name()
	}
	filename := dataprocess.CreateTimestampFilename(svc.params.DataDirectory, name, ".pcd", time.Now())
	return filename, dataprocess.WriteBytesToFile(data, filename)
}

// DoCommand dispatches map postprocessing commands.
func (svc *CartographerService) DoCommand(
	ctx context.Context,
	req map[string]interface{},
) (map[string]interface{}, error) {
	if svc.closed.Load() {
		return nil, ErrClosed
	}

	svc.postprocessMu.Lock()
	defer svc.postprocessMu.Unlock()
	if _, ok := req[postprocess.ToggleCommand]; ok {
		svc.postprocessEnabled = !svc.postprocessEnabled
		return map[string]interface{}{postprocess.ToggleCommand: svc.postprocessEnabled}, nil
	}
	if points, ok := req[postprocess.AddCommand]; ok {
		task, err := postprocess.ParseDoCommand(points, postprocess.Add)
		if err != nil {
			return nil, err
		}
		svc.postprocessTasks = append(svc.postprocessTasks, task)
		svc.postprocessEnabled = true
		return map[string]interface{}{postprocess.AddCommand: len(task.Points)}, nil
	}
	if points, ok := req[postprocess.RemoveCommand]; ok {
		task, err := postprocess.ParseDoCommand(points, postprocess.Remove)
		if err != nil {
			return nil, err
		}
		svc.postprocessTasks = append(svc.postprocessTasks, task)
		svc.postprocessEnabled = true
		return map[string]interface{}{postprocess.RemoveCommand: len(task.Points)}, nil
	}
	if _, ok := req[postprocess.UndoCommand]; ok {
		if len(svc.postprocessTasks) > 0 {
			svc.postprocessTasks = svc.postprocessTasks[:len(svc.postprocessTasks)-1]
		}
		return map[string]interface{}{postprocess.UndoCommand: len(svc.postprocessTasks)}, nil
	}
	return nil, errors.New("command not recognized")
}

// Close stops the sensor processes and marks the service closed.
func (svc *CartographerService) Close(ctx context.Context) error {
	if !svc.closed.CompareAndSwap(false, true) {
		return nil
	}
	if svc.cancelSensorProcessFunc != nil {
		svc.cancelSensorProcessFunc()
	}
	svc.sensorProcessWorkers.Wait()
	return nil
}
