package configuration

import "time"

// Settings is the part of the configuration which can be changed at runtime.
type Settings struct {
	Fan       FanSettings     `json:"fan"`
	Power     PowerSettings   `json:"power"`
	Battery   BatterySettings `json:"battery"`
	Profiles  ProfilesConfig  `json:"profiles"`
	Telemetry TelemetryPolicy `json:"telemetry"`

	// FanCalibration is the last successful calibration table, sorted by duty
	FanCalibration []CalibrationPoint `json:"fanCalibration,omitempty" mapstructure:"-" yaml:"-"`
}

// Setting is a single value which is only applied if it is enabled.
type Setting[T any] struct {
	Enabled bool `json:"enabled"`
	Value   T    `json:"value"`
}

// Get returns the value and whether it should be applied.
func (s Setting[T]) Get() (T, bool) {
	return s.Value, s.Enabled
}

type FanMode string

const (
	FanModeDisabled FanMode = "disabled"
	FanModeManual   FanMode = "manual"
	FanModeCurve    FanMode = "curve"
)

type FanSettings struct {
	Mode   FanMode         `json:"mode"`
	Manual ManualFanConfig `json:"manual"`
	Curve  CurveConfig     `json:"curve"`
	// ReleaseOnDisable hands fan control back to the firmware once when switching to disabled
	ReleaseOnDisable bool `json:"releaseOnDisable"`
}

type ManualFanConfig struct {
	DutyPct float64 `json:"dutyPct"`
}

type PowerMode string

const (
	PowerModeDisabled PowerMode = "disabled"
	PowerModeManual   PowerMode = "manual"
	PowerModeProfile  PowerMode = "profile"
)

type PowerSettings struct {
	Mode    PowerMode     `json:"mode"`
	Manual  PowerTargets  `json:"manual"`
	Reapply ReapplyConfig `json:"reapply"`
}

type PowerTargets struct {
	TdpWatts      Setting[float64] `json:"tdpWatts"`
	ThermalLimitC Setting[float64] `json:"thermalLimitC"`

	// cpufreq scaling policy, applied in this order
	Governor      Setting[string]  `json:"governor"`
	EppPreference Setting[string]  `json:"eppPreference"`
	MinFreqMhz    Setting[float64] `json:"minFreqMhz"`
	MaxFreqMhz    Setting[float64] `json:"maxFreqMhz"`
}

type ReapplyConfig struct {
	PollInterval time.Duration `json:"pollInterval"`
	Tolerance    float64       `json:"tolerance"`
	QuietWindow  time.Duration `json:"quietWindow"`
	Cooldown     time.Duration `json:"cooldown"`
}

type BatteryMode string

const (
	BatteryModeDisabled BatteryMode = "disabled"
	BatteryModeManual   BatteryMode = "manual"
	BatteryModeProfile  BatteryMode = "profile"
)

type BatterySettings struct {
	Mode            BatteryMode    `json:"mode"`
	Manual          BatteryTargets `json:"manual"`
	PollInterval    time.Duration  `json:"pollInterval"`
	ReapplyInterval time.Duration  `json:"reapplyInterval"`
}

type BatteryTargets struct {
	ChargeRateC       Setting[float64] `json:"chargeRateC"`
	SocThresholdPct   *float64         `json:"socThresholdPct,omitempty"`
	ChargeLimitMaxPct Setting[float64] `json:"chargeLimitMaxPct"`
}

type PowerSource string

const (
	PowerSourceAc      PowerSource = "ac"
	PowerSourceBattery PowerSource = "battery"
)

func ParsePowerSource(value string) (PowerSource, bool) {
	switch PowerSource(value) {
	case PowerSourceAc, PowerSourceBattery:
		return PowerSource(value), true
	}
	return "", false
}

// ProfileConfig bundles the settings applied while the given power source is active.
type ProfileConfig struct {
	TdpWatts          Setting[float64] `json:"tdpWatts"`
	ThermalLimitC     Setting[float64] `json:"thermalLimitC"`
	ChargeRateC       Setting[float64] `json:"chargeRateC"`
	ChargeLimitMaxPct Setting[float64] `json:"chargeLimitMaxPct"`
	SocThresholdPct   *float64         `json:"socThresholdPct,omitempty"`

	Governor      Setting[string]  `json:"governor"`
	EppPreference Setting[string]  `json:"eppPreference"`
	MinFreqMhz    Setting[float64] `json:"minFreqMhz"`
	MaxFreqMhz    Setting[float64] `json:"maxFreqMhz"`
}

func (p ProfileConfig) PowerTargets() PowerTargets {
	return PowerTargets{
		TdpWatts:      p.TdpWatts,
		ThermalLimitC: p.ThermalLimitC,
		Governor:      p.Governor,
		EppPreference: p.EppPreference,
		MinFreqMhz:    p.MinFreqMhz,
		MaxFreqMhz:    p.MaxFreqMhz,
	}
}

func (p ProfileConfig) BatteryTargets() BatteryTargets {
	return BatteryTargets{
		ChargeRateC:       p.ChargeRateC,
		SocThresholdPct:   p.SocThresholdPct,
		ChargeLimitMaxPct: p.ChargeLimitMaxPct,
	}
}

type ProfilesConfig struct {
	PollInterval time.Duration `json:"pollInterval"`
	Ac           ProfileConfig `json:"ac"`
	Battery      ProfileConfig `json:"battery"`
}

func (p ProfilesConfig) Get(source PowerSource) ProfileConfig {
	if source == PowerSourceBattery {
		return p.Battery
	}
	return p.Ac
}

func (p *ProfilesConfig) Set(source PowerSource, profile ProfileConfig) {
	if source == PowerSourceBattery {
		p.Battery = profile
	} else {
		p.Ac = profile
	}
}

const (
	DefaultTelemetryPollMs        = 1000
	DefaultTelemetryRetainSeconds = 1800
	MinTelemetryPollMs            = 200
)

// TelemetryPolicy controls the telemetry sampling rate and how long samples are retained.
type TelemetryPolicy struct {
	PollMs        int `json:"pollMs"`
	RetainSeconds int `json:"retainSeconds"`
}

// PollInterval returns the sampling interval, never less than MinTelemetryPollMs
func (p TelemetryPolicy) PollInterval() time.Duration {
	pollMs := p.PollMs
	if pollMs < MinTelemetryPollMs {
		pollMs = MinTelemetryPollMs
	}
	return time.Duration(pollMs) * time.Millisecond
}

func (p TelemetryPolicy) Retention() time.Duration {
	return time.Duration(p.RetainSeconds) * time.Second
}
