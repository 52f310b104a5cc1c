package statistics

import (
	"github.com/fwctl/fwctl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemTelemetry = "telemetry"

type TelemetrySource interface {
	Latest() (telemetry.Sample, bool)
	Len() int
}

// TelemetryCollector exposes the latest telemetry sample and the size of the retention buffer.
type TelemetryCollector struct {
	telemetry    TelemetrySource
	temperature  *prometheus.Desc
	chargePct    *prometheus.Desc
	bufferLength *prometheus.Desc
}

func NewTelemetryCollector(source TelemetrySource) *TelemetryCollector {
	return &TelemetryCollector{
		telemetry: source,
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemTelemetry, "temperature_celsius"),
			"Current value of the temperature sensor",
			[]string{"sensor"}, nil,
		),
		chargePct: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemTelemetry, "battery_charge_pct"),
			"Current state of charge of the battery",
			nil, nil,
		),
		bufferLength: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemTelemetry, "buffer_length"),
			"Number of samples in the retention buffer",
			nil, nil,
		),
	}
}

func (collector *TelemetryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.temperature
	ch <- collector.chargePct
	ch <- collector.bufferLength
}

// Collect implements required collect function for all prometheus collectors
func (collector *TelemetryCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.bufferLength, prometheus.GaugeValue, float64(collector.telemetry.Len()))

	sample, ok := collector.telemetry.Latest()
	if !ok {
		return
	}
	for sensor, value := range sample.Temperatures {
		ch <- prometheus.MustNewConstMetric(collector.temperature, prometheus.GaugeValue, value, sensor)
	}
	if sample.Battery != nil && sample.Battery.ChargePct != nil {
		ch <- prometheus.MustNewConstMetric(collector.chargePct, prometheus.GaugeValue, *sample.Battery.ChargePct)
	}
}
