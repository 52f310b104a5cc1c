package telemetry

import (
	"time"

	"github.com/fwctl/fwctl/internal/platform"
)

// BatterySnapshot is the battery and charger state at the time of a sample.
type BatterySnapshot struct {
	AcPresent     *bool    `json:"acPresent,omitempty"`
	ChargePct     *float64 `json:"chargePct,omitempty"`
	RemainingMah  *float64 `json:"remainingMah,omitempty"`
	FullChargeMah *float64 `json:"fullChargeMah,omitempty"`
	VoltageMv     *float64 `json:"voltageMv,omitempty"`
	RateMa        *float64 `json:"rateMa,omitempty"`
	CycleCount    *int     `json:"cycleCount,omitempty"`
	Charging      bool     `json:"charging"`
	Discharging   bool     `json:"discharging"`
}

// Sample is a single telemetry reading. Samples are never modified once inserted into a RetentionBuffer.
type Sample struct {
	Timestamp    time.Time          `json:"timestamp"`
	Temperatures map[string]float64 `json:"temperatures"`
	FanRpms      []float64          `json:"fanRpms"`
	Battery      *BatterySnapshot   `json:"battery,omitempty"`
}

// AcPresent reports the AC adapter state, ok is false if it is unknown
func (s Sample) AcPresent() (present bool, ok bool) {
	if s.Battery == nil || s.Battery.AcPresent == nil {
		return false, false
	}
	return *s.Battery.AcPresent, true
}

func (s Sample) copy() Sample {
	result := Sample{
		Timestamp:    s.Timestamp,
		Temperatures: make(map[string]float64, len(s.Temperatures)),
		FanRpms:      append([]float64{}, s.FanRpms...),
	}
	for name, value := range s.Temperatures {
		result.Temperatures[name] = value
	}
	if s.Battery != nil {
		battery := *s.Battery
		battery.AcPresent = copyPtr(s.Battery.AcPresent)
		battery.ChargePct = copyPtr(s.Battery.ChargePct)
		battery.RemainingMah = copyPtr(s.Battery.RemainingMah)
		battery.FullChargeMah = copyPtr(s.Battery.FullChargeMah)
		battery.VoltageMv = copyPtr(s.Battery.VoltageMv)
		battery.RateMa = copyPtr(s.Battery.RateMa)
		battery.CycleCount = copyPtr(s.Battery.CycleCount)
		result.Battery = &battery
	}
	return result
}

// NewSample combines a thermal reading and an optional power state into a sample.
func NewSample(timestamp time.Time, thermal platform.ThermalReading, power *platform.PowerState) Sample {
	sample := Sample{
		Timestamp:    timestamp,
		Temperatures: map[string]float64{},
		FanRpms:      []float64{},
	}
	for name, value := range thermal.Temperatures {
		sample.Temperatures[name] = value
	}
	sample.FanRpms = append(sample.FanRpms, thermal.FanRpms...)

	if power != nil && (power.AcPresent != nil || power.Battery != nil) {
		snapshot := &BatterySnapshot{AcPresent: copyPtr(power.AcPresent)}
		if b := power.Battery; b != nil {
			snapshot.ChargePct = copyPtr(b.ChargePct)
			snapshot.RemainingMah = copyPtr(b.RemainingCapacityMah)
			snapshot.FullChargeMah = copyPtr(b.LastFullChargeCapMah)
			snapshot.VoltageMv = copyPtr(b.PresentVoltageMv)
			snapshot.RateMa = copyPtr(b.PresentRateMa)
			snapshot.CycleCount = copyPtr(b.CycleCount)
			snapshot.Charging = b.Charging
			snapshot.Discharging = b.Discharging
		}
		sample.Battery = snapshot
	}
	return sample
}

func copyPtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
