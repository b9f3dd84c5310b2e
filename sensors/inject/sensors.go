// Package inject provides injectable timed sensors for testing.
package inject

import (
	"context"

	"github.com/viam-modules/cartocore/sensors"
)

// TimedLidar is an injectable sensors.TimedLidar.
type TimedLidar struct {
	NameFunc              func() string
	DataFrequencyHzFunc   func() int
	TimedLidarReadingFunc func(ctx context.Context) (sensors.TimedLidarReadingResponse, error)
}

// Name calls the injected NameFunc or returns a default name.
func (l *TimedLidar) Name() string {
	if l.NameFunc == nil {
		return "injected_lidar"
	}
	return l.NameFunc()
}

// DataFrequencyHz calls the injected DataFrequencyHzFunc or returns a
// default frequency.
func (l *TimedLidar) DataFrequencyHz() int {
	if l.DataFrequencyHzFunc == nil {
		return 5
	}
	return l.DataFrequencyHzFunc()
}

// TimedLidarReading calls the injected TimedLidarReadingFunc.
func (l *TimedLidar) TimedLidarReading(ctx context.Context) (sensors.TimedLidarReadingResponse, error) {
	return l.TimedLidarReadingFunc(ctx)
}

// TimedOdometer is an injectable sensors.TimedOdometer.
type TimedOdometer struct {
	NameFunc                 func() string
	DataFrequencyHzFunc      func() int
	TimedOdometerReadingFunc func(ctx context.Context) (sensors.OdometryData, error)
}

// Name calls the injected NameFunc or returns a default name.
func (o *TimedOdometer) Name() string {
	if o.NameFunc == nil {
		return "injected_odometer"
	}
	return o.NameFunc()
}

// DataFrequencyHz calls the injected DataFrequencyHzFunc or returns a
// default frequency.
func (o *TimedOdometer) DataFrequencyHz() int {
	if o.DataFrequencyHzFunc == nil {
		return 20
	}
	return o.DataFrequencyHzFunc()
}

// TimedOdometerReading calls the injected TimedOdometerReadingFunc.
func (o *TimedOdometer) TimedOdometerReading(ctx context.Context) (sensors.OdometryData, error) {
	return o.TimedOdometerReadingFunc(ctx)
}
