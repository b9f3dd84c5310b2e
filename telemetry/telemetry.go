// Package telemetry provides setup for reporting logs and stats through
// the perf exporter.
package telemetry

import (
	"time"

	"go.viam.com/utils/perf"
)

// SetupTelemetry sets up telemetry so logs and stats, including the trace
// spans the core emits around matching and insertion, can be reported.
func SetupTelemetry() (perf.Exporter, error) {
	exporter := perf.NewDevelopmentExporterWithOptions(perf.DevelopmentExporterOptions{
		ReportingInterval: time.Second,
	})
	if err := exporter.Start(); err != nil {
		return nil, err
	}
	return exporter, nil
}
