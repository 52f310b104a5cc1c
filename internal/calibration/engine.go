package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/fwctl/fwctl/internal/util"
	"github.com/qdm12/reprint"
)

var (
	ErrInProgress = errors.New("calibration already in progress")
	ErrCancelled  = errors.New("calibration cancelled")
	// ErrCalibrationTimeout means a level did not settle in time, the median of the collected samples is used
	ErrCalibrationTimeout = errors.New("calibration level did not settle")
	ErrNoMeasurements     = errors.New("no level could be measured")
)

const lockOwner = "calibration"

// Suspender pauses a domain controller while calibration drives its actuator
type Suspender interface {
	Suspend()
	Resume()
}

// Progress describes the level currently being measured
type Progress struct {
	Level   int     `json:"level"`
	Levels  int     `json:"levels"`
	Duty    float64 `json:"duty"`
	Samples int     `json:"samples"`
}

type Engine struct {
	platform  platform.Platform
	store     *store.Store
	suspender Suspender

	// OnProgress is called from the calibration goroutine
	OnProgress func(progress Progress)
}

func NewEngine(p platform.Platform, s *store.Store, suspender Suspender) *Engine {
	return &Engine{
		platform:  p,
		store:     s,
		suspender: suspender,
	}
}

// Levels returns the duty levels of a calibration run, in the given order and always ending with 0
func Levels(sweep []float64) []float64 {
	levels := []float64{}
	hasZero := false
	for _, duty := range sweep {
		duty = util.Coerce(duty, 0, 100)
		if duty == 0 {
			hasZero = true
		}
		levels = append(levels, duty)
	}
	if !hasZero {
		levels = append(levels, 0)
	}
	return levels
}

// Run sweeps the fan through the given duty levels and measures the resulting RPM per level.
// The fan domain is locked for the duration of the run and the fan settings are restored afterwards,
// regardless of the outcome.
func (e *Engine) Run(ctx context.Context, domain store.Domain, sweep []float64, policy configuration.CalibrationConfig) (*Table, error) {
	if domain != store.DomainFan {
		return nil, fmt.Errorf("%w: domain '%s' cannot be calibrated", configuration.ErrConfigurationRejected, domain)
	}
	if len(sweep) <= 0 {
		sweep = policy.Sweep
	}

	if err := e.store.Lock(domain, lockOwner); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInProgress, err)
	}
	defer e.store.Unlock(domain, lockOwner)

	previous := reprint.This(e.store.Fan()).(configuration.FanSettings)
	if e.suspender != nil {
		e.suspender.Suspend()
	}
	defer func() {
		if _, err := e.store.SetFanAs(lockOwner, previous); err != nil {
			ui.Error("Unable to restore fan settings after calibration: %v", err)
		}
		// the last sweep level must not stay active, e.g. if the restored mode never commands the fan
		if err := e.platform.RestoreAutoFan(context.WithoutCancel(ctx)); err != nil {
			ui.Warning("Calibration: unable to restore automatic fan control: %v", err)
		}
		if e.suspender != nil {
			e.suspender.Resume()
		}
	}()

	levels := Levels(sweep)
	var points []configuration.CalibrationPoint
	for idx, duty := range levels {
		progress := Progress{Level: idx + 1, Levels: len(levels), Duty: duty}
		e.report(progress)

		response, ok, err := e.measureLevel(ctx, progress, policy)
		if errors.Is(err, ErrCancelled) {
			return nil, err
		}
		if errors.Is(err, ErrCalibrationTimeout) {
			ui.Warning("Calibration: duty %v%%: %v", duty, err)
		}
		if !ok {
			ui.Warning("Calibration: no measurement for duty %v%%, skipping", duty)
			continue
		}
		ui.Debug("Calibration: measured %v RPM at duty %v%%", response, duty)
		points = append(points, configuration.CalibrationPoint{Duty: duty, Response: response})
	}

	if len(points) <= 0 {
		return nil, ErrNoMeasurements
	}

	table, err := NewTable(points)
	if err != nil {
		return nil, err
	}
	if !table.IsMonotonic() {
		ui.Warning("Calibration: response is not monotonic in duty, keeping the table anyway")
	}

	if _, err := e.store.SetFanCalibration(table.Points()); err != nil {
		return nil, err
	}
	return table, nil
}

func (e *Engine) report(progress Progress) {
	if e.OnProgress != nil {
		e.OnProgress(progress)
	}
}

// measureLevel commands duty and samples the fan speed until the last WindowSize samples are stable.
func (e *Engine) measureLevel(ctx context.Context, progress Progress, policy configuration.CalibrationConfig) (float64, bool, error) {
	windowSize := policy.WindowSize
	if windowSize <= 0 {
		windowSize = 1
	}
	window := util.CreateRollingWindow(windowSize)
	var collected []float64
	commanded := false

	command := func() {
		if commanded {
			return
		}
		if err := e.platform.ApplyFanDuty(ctx, progress.Duty); err != nil {
			ui.Warning("Calibration: unable to set duty %v%%: %v", progress.Duty, err)
			return
		}
		commanded = true
	}
	command()

	ticker := time.NewTicker(policy.SampleInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(policy.LevelTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, false, ErrCancelled
		case <-timeout.C:
			if len(collected) <= 0 {
				return 0, false, ErrCalibrationTimeout
			}
			return util.Median(collected), true, fmt.Errorf("%w after %v, using median of %d samples", ErrCalibrationTimeout, policy.LevelTimeout, len(collected))
		case <-ticker.C:
			command()
			if !commanded {
				continue
			}
			rpm, err := e.readRpm(ctx)
			if err != nil {
				ui.Debug("Calibration: %v", err)
				continue
			}

			window.Append(rpm)
			collected = append(collected, rpm)
			sample := progress
			sample.Samples = len(collected)
			e.report(sample)

			if len(collected) < windowSize {
				continue
			}
			values := util.GetWindowValues(window)
			if util.PopulationStdDev(values) < policy.StdDevThreshold {
				return util.Median(values), true, nil
			}
		}
	}
}

func (e *Engine) readRpm(ctx context.Context) (float64, error) {
	reading, err := platform.ReadThermalFresh(ctx, e.platform)
	if err != nil {
		return 0, err
	}
	if len(reading.FanRpms) <= 0 {
		return 0, fmt.Errorf("%w: no fan speed in reading", platform.ErrTransientRead)
	}
	return util.Max(reading.FanRpms), nil
}
