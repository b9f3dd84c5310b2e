package sensors_test

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/viam-modules/cartocore/sensors"
)

func TestNewScanConverterValidation(t *testing.T) {
	_, err := sensors.NewScanConverter(-1, 25, 25)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = sensors.NewScanConverter(0.2, 0.1, 25)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = sensors.NewScanConverter(0.2, 25, 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = sensors.NewScanConverter(0.2, 25, 25)
	test.That(t, err, test.ShouldBeNil)
}

func TestConvertReturns(t *testing.T) {
	converter, err := sensors.NewScanConverter(0.2, 25, 25)
	test.That(t, err, test.ShouldBeNil)

	points, misses := converter.Convert(sensors.LaserScan{
		MinAngle:       0,
		AngleIncrement: math.Pi / 2,
		Ranges:         []float64{1.0, 2.0},
	})
	test.That(t, misses, test.ShouldHaveLength, 0)
	test.That(t, points, test.ShouldHaveLength, 2)
	test.That(t, points[0].X, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, points[0].Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, points[1].X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, points[1].Y, test.ShouldAlmostEqual, 2.0, 1e-9)
}

func TestConvertDropsTooClose(t *testing.T) {
	converter, err := sensors.NewScanConverter(0.2, 25, 25)
	test.That(t, err, test.ShouldBeNil)

	points, misses := converter.Convert(sensors.LaserScan{
		Ranges: []float64{0.1},
	})
	test.That(t, points, test.ShouldHaveLength, 0)
	test.That(t, misses, test.ShouldHaveLength, 0)
}

func TestConvertMissingBeamsBecomeMisses(t *testing.T) {
	converter, err := sensors.NewScanConverter(0.2, 25, 10)
	test.That(t, err, test.ShouldBeNil)

	points, misses := converter.Convert(sensors.LaserScan{
		MinAngle:       0,
		AngleIncrement: 0.1,
		Ranges:         []float64{0, math.NaN(), math.Inf(1), 30.0},
	})
	test.That(t, points, test.ShouldHaveLength, 0)
	test.That(t, misses, test.ShouldHaveLength, 4)
	for _, miss := range misses {
		test.That(t, math.Hypot(miss.X, miss.Y), test.ShouldAlmostEqual, 10.0, 1e-9)
	}
}
