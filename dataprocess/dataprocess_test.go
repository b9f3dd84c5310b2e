package dataprocess

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/viam-modules/cartocore/sensors"
)

func TestCreateTimestampFilename(t *testing.T) {
	timeStamp, err := time.Parse(time.RFC3339, "2006-01-02T15:04:05Z")
	test.That(t, err, test.ShouldBeNil)

	filename := CreateTimestampFilename("/tmp/data", "rplidar", ".pcd", timeStamp)
	test.That(t, filename, test.ShouldEqual, "/tmp/data/rplidar_data_2006-01-02T15:04:05.0000Z.pcd")
}

func TestWritePCDToFile(t *testing.T) {
	pc := pointcloud.New()
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 2}, pointcloud.NewBasicData()), test.ShouldBeNil)

	filename := filepath.Join(t.TempDir(), "map.pcd")
	test.That(t, WritePCDToFile(pc, filename), test.ShouldBeNil)

	data, err := os.ReadFile(filename)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(data), test.ShouldBeGreaterThan, 0)
}

func TestWriteOdometryToFile(t *testing.T) {
	od := sensors.OdometryData{
		Time: time.Now().UTC(),
		Pose: spatialmath.NewPoseFromPoint(r3.Vector{X: 1.5, Y: -2.0}),
	}
	filename := filepath.Join(t.TempDir(), "odometry.json")
	test.That(t, WriteOdometryToFile(od, filename), test.ShouldBeNil)

	data, err := os.ReadFile(filename)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"x":1.5`)
}
