package sensorprocess

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/viam-modules/cartocore/localslam"
	s "github.com/viam-modules/cartocore/sensors"
	"github.com/viam-modules/cartocore/sensors/inject"
)

var errUnknown = errors.New("unknown error")

// mockBuilder records the readings the sensor processes feed it.
type mockBuilder struct {
	mu            sync.Mutex
	lidarReadings []s.TimedLidarReadingResponse
	odometryData  []s.OdometryData
	lidarErr      error
}

func (m *mockBuilder) AddLidarReading(
	ctx context.Context,
	reading s.TimedLidarReadingResponse,
) (localslam.InsertionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lidarErr != nil {
		return localslam.InsertionResult{}, m.lidarErr
	}
	m.lidarReadings = append(m.lidarReadings, reading)
	return localslam.InsertionResult{Time: reading.ReadingTime, Score: 0.8}, nil
}

func (m *mockBuilder) AddOdometryData(od s.OdometryData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.odometryData = append(m.odometryData, od)
}

func (m *mockBuilder) numLidarReadings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lidarReadings)
}

func (m *mockBuilder) numOdometryData() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.odometryData)
}

func testLidarReading() s.TimedLidarReadingResponse {
	return s.TimedLidarReadingResponse{
		Points:      []r3.Vector{{X: 1.0, Y: 0}},
		ReadingTime: time.Now().UTC(),
	}
}

func TestAddLidarReading(t *testing.T) {
	logger := logging.NewTestLogger(t)
	builder := &mockBuilder{}

	lidar := &inject.TimedLidar{
		TimedLidarReadingFunc: func(ctx context.Context) (s.TimedLidarReadingResponse, error) {
			return testLidarReading(), nil
		},
		DataFrequencyHzFunc: func() int { return 100 },
	}
	config := Config{Builder: builder, Lidar: lidar, Logger: logger}

	t.Run("successful reading is added", func(t *testing.T) {
		err := config.addLidarReading(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, builder.numLidarReadings(), test.ShouldEqual, 1)
	})

	t.Run("sensor error is returned", func(t *testing.T) {
		erroringLidar := &inject.TimedLidar{
			TimedLidarReadingFunc: func(ctx context.Context) (s.TimedLidarReadingResponse, error) {
				return s.TimedLidarReadingResponse{}, errUnknown
			},
		}
		erroringConfig := Config{Builder: builder, Lidar: erroringLidar, Logger: logger}
		err := erroringConfig.addLidarReading(context.Background())
		test.That(t, err, test.ShouldBeError, errUnknown)
	})

	t.Run("builder error is returned", func(t *testing.T) {
		failingBuilder := &mockBuilder{lidarErr: errUnknown}
		failingConfig := Config{Builder: failingBuilder, Lidar: lidar, Logger: logger}
		err := failingConfig.addLidarReading(context.Background())
		test.That(t, err, test.ShouldBeError, errUnknown)
	})
}

func TestStartLidarStopsOnContextCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	builder := &mockBuilder{}
	lidar := &inject.TimedLidar{
		TimedLidarReadingFunc: func(ctx context.Context) (s.TimedLidarReadingResponse, error) {
			return testLidarReading(), nil
		},
		DataFrequencyHzFunc: func() int { return 100 },
	}
	config := Config{Builder: builder, Lidar: lidar, Logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		config.StartLidar(ctx)
		close(done)
	}()

	for builder.numLidarReadings() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	test.That(t, builder.numLidarReadings(), test.ShouldBeGreaterThan, 0)
}

func TestStartOdometerFeedsBuilder(t *testing.T) {
	logger := logging.NewTestLogger(t)
	builder := &mockBuilder{}
	odometer := &inject.TimedOdometer{
		TimedOdometerReadingFunc: func(ctx context.Context) (s.OdometryData, error) {
			return s.OdometryData{
				Time: time.Now().UTC(),
				Pose: spatialmath.NewPoseFromPoint(r3.Vector{X: 1.0}),
			}, nil
		},
		DataFrequencyHzFunc: func() int { return 100 },
	}
	config := Config{Builder: builder, Odometer: odometer, Logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		config.StartOdometer(ctx)
		close(done)
	}()

	for builder.numOdometryData() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	test.That(t, builder.numOdometryData(), test.ShouldBeGreaterThan, 0)
}

func TestRemainderOfInterval(t *testing.T) {
	config := Config{}
	test.That(t, config.remainderOfInterval(0, time.Now()), test.ShouldEqual, 0)
	test.That(t, config.remainderOfInterval(5, time.Now().UTC()), test.ShouldBeBetweenOrEqual, 190, 200)
	test.That(t, config.remainderOfInterval(5, time.Now().UTC().Add(-time.Second)), test.ShouldEqual, 0)
}
