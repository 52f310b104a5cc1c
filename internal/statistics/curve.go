package statistics

import (
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemCurve = "curve"

// CurveCollector exposes the fan curve evaluation, only while the fan is in curve mode.
type CurveCollector struct {
	fan    FanStatusSource
	input  *prometheus.Desc
	target *prometheus.Desc
}

func NewCurveCollector(fan FanStatusSource) *CurveCollector {
	return &CurveCollector{
		fan: fan,
		input: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemCurve, "input"),
			"Sensor value driving the curve",
			[]string{"sensor"}, nil,
		),
		target: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemCurve, "target_pct"),
			"Duty the curve is currently heading for",
			nil, nil,
		),
	}
}

func (collector *CurveCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.input
	ch <- collector.target
}

// Collect implements required collect function for all prometheus collectors
func (collector *CurveCollector) Collect(ch chan<- prometheus.Metric) {
	status := collector.fan.Status()
	if status.Mode != configuration.FanModeCurve {
		return
	}
	if status.DrivingValue != nil {
		ch <- prometheus.MustNewConstMetric(collector.input, prometheus.GaugeValue, *status.DrivingValue, status.DrivingSensor)
	}
	if status.Target != nil {
		ch <- prometheus.MustNewConstMetric(collector.target, prometheus.GaugeValue, *status.Target)
	}
}
