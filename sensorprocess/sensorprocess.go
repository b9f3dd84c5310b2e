// Package sensorprocess contains the logic to poll timed sensors and feed
// their readings to the local trajectory builder.
package sensorprocess

import (
	"context"
	"math"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/viam-modules/cartocore/localslam"
	s "github.com/viam-modules/cartocore/sensors"
)

// TrajectoryBuilder is the subset of the local trajectory builder the
// sensor processes drive.
type TrajectoryBuilder interface {
	AddLidarReading(ctx context.Context, reading s.TimedLidarReadingResponse) (localslam.InsertionResult, error)
	AddOdometryData(od s.OdometryData)
}

// Config holds what is needed to run the sensor processes. The lidar
// process is the single ingest goroutine of the core; the odometer process
// only feeds the pose extrapolator.
type Config struct {
	Builder  TrajectoryBuilder
	Lidar    s.TimedLidar
	Odometer s.TimedOdometer
	Logger   logging.Logger
}

// StartLidar polls the lidar for the next reading and adds it to the
// trajectory builder. Stops when the context is done.
func (config *Config) StartLidar(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := config.addLidarReading(ctx); err != nil {
				config.Logger.Warnw("failed to add lidar reading", "error", err)
			}
		}
	}
}

// addLidarReading gets the next lidar reading, feeds it to the builder,
// and sleeps the remainder of the data interval.
func (config *Config) addLidarReading(ctx context.Context) error {
	reading, err := config.Lidar.TimedLidarReading(ctx)
	if err != nil {
		return err
	}

	startTime := time.Now().UTC()
	result, err := config.Builder.AddLidarReading(ctx, reading)
	if err != nil {
		config.Logger.Debugf("%v \t | LIDAR | Failure \t \t | %v \n", reading.ReadingTime, reading.ReadingTime.Unix())
		return err
	}
	if result.Score == 0 {
		config.Logger.Debugw("scan inserted without a usable match", "time", reading.ReadingTime)
	}

	timeToSleep := config.remainderOfInterval(config.Lidar.DataFrequencyHz(), startTime)
	time.Sleep(time.Duration(timeToSleep) * time.Millisecond)
	config.Logger.Debugf("lidar sleep for %vms", timeToSleep)
	return nil
}

// StartOdometer polls the odometer for the next reading and feeds the pose
// extrapolator. Stops when the context is done.
func (config *Config) StartOdometer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := config.addOdometerReading(ctx); err != nil {
				config.Logger.Warnw("failed to add odometer reading", "error", err)
			}
		}
	}
}

func (config *Config) addOdometerReading(ctx context.Context) error {
	od, err := config.Odometer.TimedOdometerReading(ctx)
	if err != nil {
		return err
	}
	startTime := time.Now().UTC()
	config.Builder.AddOdometryData(od)

	timeToSleep := config.remainderOfInterval(config.Odometer.DataFrequencyHz(), startTime)
	time.Sleep(time.Duration(timeToSleep) * time.Millisecond)
	return nil
}

// remainderOfInterval returns how many milliseconds of the sensor's data
// interval are left after the work done since startTime.
func (config *Config) remainderOfInterval(dataFrequencyHz int, startTime time.Time) int {
	if dataFrequencyHz <= 0 {
		return 0
	}
	timeElapsedMs := int(time.Since(startTime).Milliseconds())
	return int(math.Max(0, float64(1000/dataFrequencyHz-timeElapsedMs)))
}
