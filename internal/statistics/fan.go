package statistics

import (
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

const fanSubsystem = "fan"

var fanModes = []configuration.FanMode{
	configuration.FanModeDisabled,
	configuration.FanModeManual,
	configuration.FanModeCurve,
}

type FanStatusSource interface {
	Status() controller.FanStatus
}

type FanCollector struct {
	fan       FanStatusSource
	duty      *prometheus.Desc
	rpm       *prometheus.Desc
	mode      *prometheus.Desc
	suspended *prometheus.Desc
}

func NewFanCollector(fan FanStatusSource) *FanCollector {
	return &FanCollector{
		fan: fan,
		duty: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "duty_pct"),
			"Last duty commanded to the fan",
			nil, nil,
		),
		rpm: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "rpm"),
			"Current RPM value of the fan",
			nil, nil,
		),
		mode: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "mode"),
			"Active fan mode, 1 for the active one",
			[]string{"mode"}, nil,
		),
		suspended: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "suspended"),
			"Whether the fan controller is suspended, e.g. during a calibration",
			nil, nil,
		),
	}
}

func (collector *FanCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.duty
	ch <- collector.rpm
	ch <- collector.mode
	ch <- collector.suspended
}

// Collect implements required collect function for all prometheus collectors
func (collector *FanCollector) Collect(ch chan<- prometheus.Metric) {
	status := collector.fan.Status()
	if status.Duty != nil {
		ch <- prometheus.MustNewConstMetric(collector.duty, prometheus.GaugeValue, *status.Duty)
	}
	if status.Rpm != nil {
		ch <- prometheus.MustNewConstMetric(collector.rpm, prometheus.GaugeValue, *status.Rpm)
	}
	for _, mode := range fanModes {
		ch <- prometheus.MustNewConstMetric(collector.mode, prometheus.GaugeValue, boolValue(status.Mode == mode), string(mode))
	}
	ch <- prometheus.MustNewConstMetric(collector.suspended, prometheus.GaugeValue, boolValue(status.Suspended))
}
