package platform

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransientRead means a sensor or actuator could not be read this time, try again next tick
	ErrTransientRead = errors.New("transient read failure")
	// ErrTransientWrite means an actuation command failed, try again on the next eligible tick
	ErrTransientWrite = errors.New("transient write failure")
	// ErrUnsupported is returned for actuators the configured backends cannot drive
	ErrUnsupported = errors.New("not supported by platform")
)

// ThermalReading is the result of a single thermal read.
type ThermalReading struct {
	Temperatures map[string]float64 `json:"temperatures"`
	FanRpms      []float64          `json:"fanRpms"`
}

// BatteryInfo holds the battery and charger electricals, every field is optional.
type BatteryInfo struct {
	ChargePct            *float64 `json:"chargePct,omitempty"`
	RemainingCapacityMah *float64 `json:"remainingCapacityMah,omitempty"`
	LastFullChargeCapMah *float64 `json:"lastFullChargeCapacityMah,omitempty"`
	PresentVoltageMv     *float64 `json:"presentVoltageMv,omitempty"`
	PresentRateMa        *float64 `json:"presentRateMa,omitempty"`
	CycleCount           *int     `json:"cycleCount,omitempty"`
	Charging             bool     `json:"charging"`
	Discharging          bool     `json:"discharging"`
}

// PowerState is the result of a single power read.
type PowerState struct {
	TdpWatts      *float64     `json:"tdpWatts,omitempty"`
	ThermalLimitC *float64     `json:"thermalLimitC,omitempty"`
	AcPresent     *bool        `json:"acPresent,omitempty"`
	Battery       *BatteryInfo `json:"battery,omitempty"`
}

// Platform is the boundary to the hardware. Every call is bounded by a timeout,
// failures wrap ErrTransientRead or ErrTransientWrite.
type Platform interface {
	ReadThermal(ctx context.Context) (ThermalReading, error)
	ReadPowerState(ctx context.Context) (PowerState, error)

	ApplyFanDuty(ctx context.Context, pct float64) error
	// RestoreAutoFan hands fan control back to the firmware
	RestoreAutoFan(ctx context.Context) error

	ApplyTdp(ctx context.Context, watts float64) error
	ApplyThermalLimit(ctx context.Context, celsius float64) error

	// ApplyChargeRate limits the charge rate (in C) once the state of charge is above socThresholdPct (if set)
	ApplyChargeRate(ctx context.Context, cRate float64, socThresholdPct *float64) error
	ApplyChargeLimit(ctx context.Context, maxPct float64) error
}

// Invalidator is implemented by platforms which cache their readings.
type Invalidator interface {
	Invalidate()
}

// ReadThermalFresh reads the thermal state, bypassing any read cache.
func ReadThermalFresh(ctx context.Context, p Platform) (ThermalReading, error) {
	if invalidator, ok := p.(Invalidator); ok {
		invalidator.Invalidate()
	}
	return p.ReadThermal(ctx)
}

// PowerInvalidator is implemented by platforms which cache their power state.
type PowerInvalidator interface {
	InvalidatePower()
}

// ReadPowerStateFresh reads the power state, bypassing any read cache.
func ReadPowerStateFresh(ctx context.Context, p Platform) (PowerState, error) {
	if invalidator, ok := p.(PowerInvalidator); ok {
		invalidator.InvalidatePower()
	}
	return p.ReadPowerState(ctx)
}

func readFailure(source string, err error) error {
	return fmt.Errorf("%s: %w: %w", source, ErrTransientRead, err)
}

func writeFailure(source string, err error) error {
	return fmt.Errorf("%s: %w: %w", source, ErrTransientWrite, err)
}

// CommandRunner executes an external tool and returns its stdout.
type CommandRunner func(ctx context.Context, executable string, args []string) (string, error)

// CpuPolicyState is the cpufreq state of the first CPU, every field is optional.
type CpuPolicyState struct {
	Governor      *string  `json:"governor,omitempty"`
	EppPreference *string  `json:"eppPreference,omitempty"`
	FrequencyMhz  *float64 `json:"frequencyMhz,omitempty"`
	MinFreqMhz    *float64 `json:"minFreqMhz,omitempty"`
	MaxFreqMhz    *float64 `json:"maxFreqMhz,omitempty"`
}

// CpuPolicy is implemented by platforms which can drive the cpufreq scaling policy of all CPUs.
type CpuPolicy interface {
	ReadCpuPolicy(ctx context.Context) (CpuPolicyState, error)
	ApplyGovernor(ctx context.Context, governor string) error
	// ApplyEppPreference fails with ErrUnsupported if the preference is not offered by the driver
	ApplyEppPreference(ctx context.Context, preference string) error
	ApplyFrequencyLimits(ctx context.Context, minMhz float64, maxMhz float64) error
}
