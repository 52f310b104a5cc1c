package configuration

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fwctl/fwctl/internal/util"
	"golang.org/x/exp/slices"
)

// ErrConfigurationRejected is returned for every configuration which cannot be applied.
// The previously active configuration stays in place.
var ErrConfigurationRejected = errors.New("configuration rejected")

const (
	CurveDomainMin = 0.0
	CurveDomainMax = 100.0
	// CurveResolution is the smallest distinguishable distance between two curve inputs
	CurveResolution = 1.0

	MinTdpWatts      = 1.0
	MaxTdpWatts      = 150.0
	MinThermalLimitC = 40.0
	MaxThermalLimitC = 105.0
)

func rejected(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfigurationRejected, fmt.Sprintf(format, a...))
}

func Validate(configPath string) error {
	return validateConfig(&CurrentConfig, configPath)
}

func validateConfig(config *Configuration, path string) error {
	if err := validatePlatform(&config.Platform); err != nil {
		return err
	}
	if err := validateCalibration(&config.Calibration); err != nil {
		return err
	}
	if config.Api.Enabled && (config.Api.Port <= 0 || config.Api.Port > 65535) {
		return rejected("Api: invalid port %d", config.Api.Port)
	}

	if len(path) > 0 && config.Platform.Limits.RyzenAdj != nil {
		// the config file decides which executables are run as root
		if _, err := util.CheckFilePermissionsForExecution(path); err != nil {
			return rejected("Config file '%s' has invalid permissions: %s", path, err)
		}
	}

	return ValidateSettings(&config.Settings)
}

func validatePlatform(config *PlatformConfig) error {
	if config.CommandTimeout <= 0 {
		return rejected("Platform: commandTimeout must be > 0")
	}
	if len(config.FrameworkTool.Path) <= 0 {
		return rejected("Platform: frameworkTool path is missing")
	}
	if config.FrameworkTool.FanIndex != nil && *config.FrameworkTool.FanIndex < 0 {
		return rejected("Platform: invalid fanIndex, must be >= 0")
	}

	subConfigs := 0
	if config.Limits.RyzenAdj != nil {
		subConfigs++
		if len(config.Limits.RyzenAdj.Path) <= 0 {
			return rejected("Platform: ryzenAdj path is missing")
		}
	}
	if config.Limits.Rapl != nil {
		subConfigs++
		if len(config.Limits.Rapl.Path) <= 0 {
			return rejected("Platform: rapl path is missing")
		}
	}
	if subConfigs > 1 {
		return rejected("Platform: only one limits backend can be used, use one of: ryzenAdj | rapl")
	}
	if config.Cpufreq.Enabled && len(config.Cpufreq.Path) <= 0 {
		return rejected("Platform: cpufreq path is missing")
	}
	return nil
}

func validateCalibration(config *CalibrationConfig) error {
	if len(config.Sweep) <= 0 {
		return rejected("Calibration: sweep must contain at least one duty level")
	}
	if err := ValidateSweep(config.Sweep); err != nil {
		return err
	}
	if config.WindowSize < 2 {
		return rejected("Calibration: windowSize must be >= 2")
	}
	if config.SampleInterval <= 0 || config.LevelTimeout <= 0 {
		return rejected("Calibration: sampleInterval and levelTimeout must be > 0")
	}
	if config.LevelTimeout < config.SampleInterval {
		return rejected("Calibration: levelTimeout must not be shorter than sampleInterval")
	}
	if config.StdDevThreshold <= 0 {
		return rejected("Calibration: stdDevThreshold must be > 0")
	}
	return nil
}

// ValidateSweep checks the duty levels of a calibration sweep
func ValidateSweep(sweep []float64) error {
	for _, duty := range sweep {
		if !util.IsFinite(duty) || duty < 0 || duty > 100 {
			return rejected("Calibration: invalid sweep duty %v, must be within 0..100", duty)
		}
	}
	return nil
}

// ValidateSettings checks the runtime adjustable settings.
func ValidateSettings(settings *Settings) error {
	if err := ValidateFan(&settings.Fan); err != nil {
		return err
	}
	if err := ValidatePower(&settings.Power); err != nil {
		return err
	}
	if err := ValidateBattery(&settings.Battery); err != nil {
		return err
	}
	if err := ValidateProfiles(&settings.Profiles); err != nil {
		return err
	}
	return ValidateTelemetryPolicy(&settings.Telemetry)
}

func ValidateFan(fan *FanSettings) error {
	supportedModes := []FanMode{FanModeDisabled, FanModeManual, FanModeCurve}
	if !slices.Contains(supportedModes, fan.Mode) {
		return rejected("Fan: unsupported mode '%s', use one of: disabled | manual | curve", fan.Mode)
	}
	if !util.IsFinite(fan.Manual.DutyPct) || fan.Manual.DutyPct < 0 || fan.Manual.DutyPct > 100 {
		return rejected("Fan: manual duty %v must be within 0..100", fan.Manual.DutyPct)
	}
	return ValidateCurve(&fan.Curve)
}

func ValidateCurve(curve *CurveConfig) error {
	if err := ValidateCurvePoints(curve.Points); err != nil {
		return err
	}
	if curve.PollInterval <= 0 {
		return rejected("Curve: pollInterval must be > 0")
	}
	if !util.IsFinite(curve.Hysteresis) || curve.Hysteresis < 0 {
		return rejected("Curve: hysteresis must be >= 0")
	}
	if !util.IsFinite(curve.RateLimit) || curve.RateLimit < 0 {
		return rejected("Curve: rateLimit must be >= 0")
	}
	for _, sensor := range curve.Sensors {
		if len(strings.TrimSpace(sensor)) <= 0 {
			return rejected("Curve: empty sensor name")
		}
	}
	return nil
}

// ValidateCurvePoints rejects point sets which cannot be normalized into a curve.
func ValidateCurvePoints(points CurvePoints) error {
	if len(points) <= 0 {
		return rejected("Curve: no points defined")
	}
	for _, p := range points {
		if !util.IsFinite(p.Input) || !util.IsFinite(p.Output) {
			return rejected("Curve: point (%v, %v) is not a finite number", p.Input, p.Output)
		}
	}
	slots := int(math.Floor((CurveDomainMax-CurveDomainMin)/CurveResolution)) + 1
	if len(points) > slots {
		return rejected("Curve: %d points do not fit into the input range %v..%v", len(points), CurveDomainMin, CurveDomainMax)
	}
	return nil
}

func ValidatePower(power *PowerSettings) error {
	supportedModes := []PowerMode{PowerModeDisabled, PowerModeManual, PowerModeProfile}
	if !slices.Contains(supportedModes, power.Mode) {
		return rejected("Power: unsupported mode '%s', use one of: disabled | manual | profile", power.Mode)
	}
	if err := validatePowerTargets("Power", power.Manual); err != nil {
		return err
	}
	reapply := power.Reapply
	if reapply.PollInterval <= 0 {
		return rejected("Power: reapply pollInterval must be > 0")
	}
	if !util.IsFinite(reapply.Tolerance) || reapply.Tolerance < 0 {
		return rejected("Power: reapply tolerance must be >= 0")
	}
	if reapply.QuietWindow < 0 || reapply.Cooldown < 0 {
		return rejected("Power: reapply quietWindow and cooldown must be >= 0")
	}
	return nil
}

func ValidateBattery(battery *BatterySettings) error {
	supportedModes := []BatteryMode{BatteryModeDisabled, BatteryModeManual, BatteryModeProfile}
	if !slices.Contains(supportedModes, battery.Mode) {
		return rejected("Battery: unsupported mode '%s', use one of: disabled | manual | profile", battery.Mode)
	}
	if battery.PollInterval <= 0 {
		return rejected("Battery: pollInterval must be > 0")
	}
	if battery.ReapplyInterval < time.Second {
		return rejected("Battery: reapplyInterval must be >= 1s")
	}
	return validateBatteryTargets("Battery", battery.Manual.ChargeRateC, battery.Manual.ChargeLimitMaxPct, battery.Manual.SocThresholdPct)
}

func ValidateProfiles(profiles *ProfilesConfig) error {
	if profiles.PollInterval <= 0 {
		return rejected("Profiles: pollInterval must be > 0")
	}
	for _, source := range []PowerSource{PowerSourceAc, PowerSourceBattery} {
		if err := ValidateProfile(source, profiles.Get(source)); err != nil {
			return err
		}
	}
	return nil
}

func ValidateProfile(source PowerSource, profile ProfileConfig) error {
	name := fmt.Sprintf("Profile %s", source)
	if err := validatePowerTargets(name, profile.PowerTargets()); err != nil {
		return err
	}
	return validateBatteryTargets(name, profile.ChargeRateC, profile.ChargeLimitMaxPct, profile.SocThresholdPct)
}

func ValidateTelemetryPolicy(policy *TelemetryPolicy) error {
	if policy.PollMs <= 0 {
		return rejected("Telemetry: pollMs must be > 0")
	}
	if policy.RetainSeconds <= 0 {
		return rejected("Telemetry: retainSeconds must be > 0")
	}
	return nil
}

func validatePowerTargets(name string, targets PowerTargets) error {
	tdp, thermalLimit := targets.TdpWatts, targets.ThermalLimitC
	if tdp.Enabled && (!util.IsFinite(tdp.Value) || tdp.Value < MinTdpWatts || tdp.Value > MaxTdpWatts) {
		return rejected("%s: tdpWatts %v must be within %v..%v", name, tdp.Value, MinTdpWatts, MaxTdpWatts)
	}
	if thermalLimit.Enabled && (!util.IsFinite(thermalLimit.Value) || thermalLimit.Value < MinThermalLimitC || thermalLimit.Value > MaxThermalLimitC) {
		return rejected("%s: thermalLimitC %v must be within %v..%v", name, thermalLimit.Value, MinThermalLimitC, MaxThermalLimitC)
	}
	return validateCpuTargets(name, targets)
}

func validateCpuTargets(name string, targets PowerTargets) error {
	if targets.Governor.Enabled && !isSysfsToken(targets.Governor.Value) {
		return rejected("%s: invalid governor '%s'", name, targets.Governor.Value)
	}
	if targets.EppPreference.Enabled && !isSysfsToken(targets.EppPreference.Value) {
		return rejected("%s: invalid eppPreference '%s'", name, targets.EppPreference.Value)
	}
	minFreq, maxFreq := targets.MinFreqMhz, targets.MaxFreqMhz
	if minFreq.Enabled && (!util.IsFinite(minFreq.Value) || minFreq.Value <= 0) {
		return rejected("%s: minFreqMhz must be > 0", name)
	}
	if maxFreq.Enabled && (!util.IsFinite(maxFreq.Value) || maxFreq.Value <= 0) {
		return rejected("%s: maxFreqMhz must be > 0", name)
	}
	if minFreq.Enabled && maxFreq.Enabled && minFreq.Value > maxFreq.Value {
		return rejected("%s: minFreqMhz %v must not exceed maxFreqMhz %v", name, minFreq.Value, maxFreq.Value)
	}
	return nil
}

// isSysfsToken reports whether value can be written as a single sysfs keyword
func isSysfsToken(value string) bool {
	return len(value) > 0 && len(strings.Fields(value)) == 1 && strings.TrimSpace(value) == value
}

func validateBatteryTargets(name string, chargeRate Setting[float64], chargeLimit Setting[float64], socThreshold *float64) error {
	if chargeRate.Enabled && (!util.IsFinite(chargeRate.Value) || chargeRate.Value < 0) {
		return rejected("%s: chargeRateC must be >= 0", name)
	}
	if chargeLimit.Enabled && (!util.IsFinite(chargeLimit.Value) || chargeLimit.Value <= 0 || chargeLimit.Value > 100) {
		return rejected("%s: chargeLimitMaxPct %v must be within 1..100", name, chargeLimit.Value)
	}
	if socThreshold != nil && (!util.IsFinite(*socThreshold) || *socThreshold < 0 || *socThreshold > 100) {
		return rejected("%s: socThresholdPct %v must be within 0..100", name, *socThreshold)
	}
	return nil
}
