package statistics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemCalibration = "calibration"

type CalibrationSource interface {
	Active() bool
}

type CalibrationCollector struct {
	calibration CalibrationSource
	points      func() int
	active      *prometheus.Desc
	tablePoints *prometheus.Desc
}

// NewCalibrationCollector exposes whether a calibration is running, points returns the size of the active table.
func NewCalibrationCollector(calibration CalibrationSource, points func() int) *CalibrationCollector {
	return &CalibrationCollector{
		calibration: calibration,
		points:      points,
		active: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemCalibration, "active"),
			"Whether a calibration is currently running",
			nil, nil,
		),
		tablePoints: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemCalibration, "table_points"),
			"Number of points in the active calibration table",
			nil, nil,
		),
	}
}

func (collector *CalibrationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.active
	ch <- collector.tablePoints
}

// Collect implements required collect function for all prometheus collectors
func (collector *CalibrationCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.active, prometheus.GaugeValue, boolValue(collector.calibration.Active()))
	ch <- prometheus.MustNewConstMetric(collector.tablePoints, prometheus.GaugeValue, float64(collector.points()))
}
