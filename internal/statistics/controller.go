package statistics

import (
	"github.com/fwctl/fwctl/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

const controllerSubsystem = "controller"

var phases = []controller.Phase{
	controller.PhaseIdle,
	controller.PhaseObserving,
	controller.PhaseSettled,
	controller.PhaseReapplying,
}

type PowerStatusSource interface {
	Status() controller.PowerStatus
}

type BatteryStatusSource interface {
	Status() controller.BatteryStatus
}

// ControllerCollector exposes the reapplication channels of the power domain and the battery commands.
type ControllerCollector struct {
	power   PowerStatusSource
	battery BatteryStatusSource

	target       *prometheus.Desc
	observed     *prometheus.Desc
	phase        *prometheus.Desc
	reapplyCount *prometheus.Desc
	chargeRate   *prometheus.Desc
	chargeLimit  *prometheus.Desc
}

func NewControllerCollector(power PowerStatusSource, battery BatteryStatusSource) *ControllerCollector {
	return &ControllerCollector{
		power:   power,
		battery: battery,
		target: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "target"),
			"Target value of the channel",
			[]string{"channel"}, nil,
		),
		observed: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "observed"),
			"Last observed effective value of the channel",
			[]string{"channel"}, nil,
		),
		phase: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "phase"),
			"Reapplication phase of the channel, 1 for the active one",
			[]string{"channel", "phase"}, nil,
		),
		reapplyCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "reapply_count"),
			"Counter for commands sent because the effective value deviated from the target",
			[]string{"channel"}, nil,
		),
		chargeRate: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "charge_rate_c"),
			"Last charge rate commanded to the battery",
			nil, nil,
		),
		chargeLimit: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "charge_limit_pct"),
			"Last charge limit commanded to the battery",
			nil, nil,
		),
	}
}

func (collector *ControllerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.target
	ch <- collector.observed
	ch <- collector.phase
	ch <- collector.reapplyCount
	ch <- collector.chargeRate
	ch <- collector.chargeLimit
}

// Collect implements required collect function for all prometheus collectors
func (collector *ControllerCollector) Collect(ch chan<- prometheus.Metric) {
	status := collector.power.Status()
	for _, channel := range []controller.ChannelStatus{status.Tdp, status.Thermal} {
		if channel.Target != nil {
			ch <- prometheus.MustNewConstMetric(collector.target, prometheus.GaugeValue, *channel.Target, channel.Name)
		}
		if channel.State.LastObserved != nil {
			ch <- prometheus.MustNewConstMetric(collector.observed, prometheus.GaugeValue, *channel.State.LastObserved, channel.Name)
		}
		for _, phase := range phases {
			ch <- prometheus.MustNewConstMetric(collector.phase, prometheus.GaugeValue, boolValue(channel.Phase == phase), channel.Name, string(phase))
		}
		ch <- prometheus.MustNewConstMetric(collector.reapplyCount, prometheus.CounterValue, float64(channel.ReapplyCount), channel.Name)
	}

	battery := collector.battery.Status()
	if battery.ChargeRateC != nil {
		ch <- prometheus.MustNewConstMetric(collector.chargeRate, prometheus.GaugeValue, *battery.ChargeRateC)
	}
	if battery.ChargeLimitPct != nil {
		ch <- prometheus.MustNewConstMetric(collector.chargeLimit, prometheus.GaugeValue, *battery.ChargeLimitPct)
	}
}
