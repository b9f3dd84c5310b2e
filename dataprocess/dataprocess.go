// Package dataprocess manages code related to saving maps and sensor data
// to disk.
package dataprocess

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	pc "go.viam.com/rdk/pointcloud"

	"github.com/viam-modules/cartocore/sensors"
)

// SlamTimeFormat is the timestamp format used in saved filenames.
const SlamTimeFormat = "2006-01-02T15:04:05.0000Z"

// CreateTimestampFilename creates a filename inside dataDirectory with a
// sensor name and timestamp written into the filename.
func CreateTimestampFilename(dataDirectory, sensorName, fileType string, timeStamp time.Time) string {
	return filepath.Join(dataDirectory, sensorName+"_data_"+timeStamp.UTC().Format(SlamTimeFormat)+fileType)
}

// WritePCDToFile encodes the pointcloud and then saves it to the passed
// filename.
func WritePCDToFile(pointcloud pc.PointCloud, filename string) error {
	buf := new(bytes.Buffer)
	if err := pc.ToPCD(pointcloud, buf, pc.PCDBinary); err != nil {
		return err
	}
	return WriteBytesToFile(buf.Bytes(), filename)
}

// WriteOdometryToFile encodes an odometry sample as JSON and saves it to
// the passed filename.
func WriteOdometryToFile(od sensors.OdometryData, filename string) error {
	point := od.Pose.Point()
	sample := struct {
		Time time.Time `json:"time"`
		X    float64   `json:"x"`
		Y    float64   `json:"y"`
	}{Time: od.Time, X: point.X, Y: point.Y}

	data, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	return WriteBytesToFile(data, filename)
}

// WriteBytesToFile writes the passed bytes to the passed filename.
func WriteBytesToFile(data []byte, filename string) error {
	//nolint:gosec
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
