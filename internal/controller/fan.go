package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/curves"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
)

// DefaultTickInterval is used by domains without a mode specific cadence
const DefaultTickInterval = 500 * time.Millisecond

// FanMode is the tagged variant of the fan domain mode, see fanDisabled, fanManual and fanCurve.
type FanMode interface {
	// Key identifies the variant and its parameters, a different key means a mode transition
	Key() string
	Name() configuration.FanMode
}

type fanDisabled struct {
	release bool
}

type fanManual struct {
	duty float64
}

type fanCurve struct {
	curve  *curves.Curve
	config configuration.CurveConfig
}

func (m fanDisabled) Key() string { return fmt.Sprintf("disabled/%v", m.release) }

func (m fanDisabled) Name() configuration.FanMode { return configuration.FanModeDisabled }

func (m fanManual) Key() string { return fmt.Sprintf("manual/%v", m.duty) }

func (m fanManual) Name() configuration.FanMode { return configuration.FanModeManual }

func (m fanCurve) Key() string { return fmt.Sprintf("curve/%v", m.config) }

func (m fanCurve) Name() configuration.FanMode { return configuration.FanModeCurve }

// FanModeOf builds the mode variant from the fan settings
func FanModeOf(settings configuration.FanSettings) (FanMode, error) {
	switch settings.Mode {
	case configuration.FanModeDisabled:
		return fanDisabled{release: settings.ReleaseOnDisable}, nil
	case configuration.FanModeManual:
		return fanManual{duty: settings.Manual.DutyPct}, nil
	case configuration.FanModeCurve:
		curve, err := curves.NewFanCurve(settings.Curve.Points)
		if err != nil {
			return nil, err
		}
		return fanCurve{curve: curve, config: settings.Curve}, nil
	}
	return nil, fmt.Errorf("%w: unsupported fan mode '%s'", configuration.ErrConfigurationRejected, settings.Mode)
}

// FanStatus is a point in time view of the fan domain.
type FanStatus struct {
	Mode          configuration.FanMode `json:"mode"`
	Suspended     bool                  `json:"suspended"`
	Duty          *float64              `json:"duty,omitempty"`
	Target        *float64              `json:"target,omitempty"`
	DrivingSensor string                `json:"drivingSensor,omitempty"`
	DrivingValue  *float64              `json:"drivingValue,omitempty"`
	Rpm           *float64              `json:"rpm,omitempty"`
}

// FanController drives the fan duty according to the fan mode.
type FanController struct {
	platform platform.Platform
	store    *store.Store

	mu        sync.Mutex
	suspended bool
	activeKey string
	// pendingRelease is set until the fan was handed back to the firmware after switching to disabled
	pendingRelease bool
	evaluator      *curves.Evaluator
	lastSetDuty    *float64
	status         FanStatus
}

func NewFanController(p platform.Platform, s *store.Store) *FanController {
	return &FanController{
		platform: p,
		store:    s,
	}
}

// Suspend stops all fan commands until Resume is called. The current mode is re-entered on resume.
func (f *FanController) Suspend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = true
	f.activeKey = ""
	// the duty is unknown once someone else drives the fan
	f.lastSetDuty = nil
	f.status.Suspended = true
}

func (f *FanController) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = false
	f.activeKey = ""
	f.status.Suspended = false
}

func (f *FanController) Status() FanStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.status
	status.Duty = copyValue(f.status.Duty)
	status.Target = copyValue(f.status.Target)
	status.DrivingValue = copyValue(f.status.DrivingValue)
	status.Rpm = copyValue(f.status.Rpm)
	return status
}

func (f *FanController) Run(ctx context.Context) error {
	ui.Info("Starting fan controller...")
	for {
		interval := f.Tick(ctx)
		select {
		case <-ctx.Done():
			ui.Info("Stopping fan controller...")
			return nil
		case <-time.After(interval):
		}
	}
}

// Tick runs a single evaluation of the active mode and returns the time until the next tick.
func (f *FanController) Tick(ctx context.Context) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.suspended || f.store.IsLocked(store.DomainFan) {
		// calibration owns the fan
		f.activeKey = ""
		return DefaultTickInterval
	}

	mode, err := FanModeOf(f.store.Fan())
	if err != nil {
		ui.Warning("Fan: %v", err)
		return DefaultTickInterval
	}
	f.status.Mode = mode.Name()

	entering := mode.Key() != f.activeKey
	switch m := mode.(type) {
	case fanDisabled:
		if entering {
			ui.Info("Fan: switching to disabled mode")
			f.activeKey = m.Key()
			f.pendingRelease = m.release
			f.lastSetDuty = nil
			f.status.Duty = nil
			f.status.Target = nil
		}
		f.releaseFan(ctx)
		return DefaultTickInterval

	case fanManual:
		if entering {
			ui.Info("Fan: switching to manual mode at %v%%", m.duty)
			f.activeKey = m.Key()
		}
		f.status.Target = &m.duty
		f.setDuty(ctx, m.duty, true)
		return DefaultTickInterval

	case fanCurve:
		interval := m.config.PollInterval
		if interval <= 0 {
			interval = DefaultTickInterval
		}
		if entering {
			f.enterCurve(ctx, m)
			return interval
		}
		reading, err := f.platform.ReadThermal(ctx)
		if err != nil {
			ui.Warning("Fan: unable to read temperatures: %v", err)
			return interval
		}
		f.evaluateCurve(ctx, m, reading)
		return interval
	}
	return DefaultTickInterval
}

func (f *FanController) releaseFan(ctx context.Context) {
	if !f.pendingRelease {
		return
	}
	if err := f.platform.RestoreAutoFan(ctx); err != nil {
		ui.Warning("Fan: unable to restore automatic fan control: %v", err)
		return
	}
	f.pendingRelease = false
}

// enterCurve starts curve evaluation from a fresh reading, the mode stays
// unentered until a reading succeeds
func (f *FanController) enterCurve(ctx context.Context, m fanCurve) {
	reading, err := platform.ReadThermalFresh(ctx, f.platform)
	if err != nil {
		ui.Warning("Fan: unable to read temperatures, curve mode is not entered yet: %v", err)
		return
	}

	ui.Info("Fan: switching to curve mode")
	f.activeKey = m.Key()
	f.evaluator = curves.NewEvaluator(m.curve, m.config.Hysteresis, m.config.RateLimit)
	start := 0.0
	if f.lastSetDuty != nil {
		start = *f.lastSetDuty
	}
	f.evaluator.Reset(start)
	f.evaluateCurve(ctx, m, reading)
}

func (f *FanController) evaluateCurve(ctx context.Context, m fanCurve, reading platform.ThermalReading) {
	if len(reading.FanRpms) > 0 {
		rpm := reading.FanRpms[0]
		f.status.Rpm = &rpm
	}

	value, sensor, ok := curves.DrivingValue(reading.Temperatures, m.config.Sensors, m.config.FallbackSensor)
	if !ok {
		ui.Warning("Fan: none of the curve sensors %v (fallback %s) is available", m.config.Sensors, m.config.FallbackSensor)
		return
	}
	f.status.DrivingSensor = sensor
	f.status.DrivingValue = &value

	duty := f.evaluator.Next(value)
	target := f.evaluator.State().Target
	f.status.Target = &target
	ui.Debug("Fan: %s at %v°C, target %v%%, duty %v%%", sensor, value, target, duty)
	f.setDuty(ctx, duty, false)
}

// setDuty commands the duty, unless it equals the last commanded duty and reassert is false
func (f *FanController) setDuty(ctx context.Context, duty float64, reassert bool) {
	if !reassert && f.lastSetDuty != nil && *f.lastSetDuty == duty {
		return
	}
	if err := f.platform.ApplyFanDuty(ctx, duty); err != nil {
		ui.Warning("Fan: unable to set duty to %v%%: %v", duty, err)
		return
	}
	f.lastSetDuty = &duty
	f.status.Duty = copyValue(&duty)
}
