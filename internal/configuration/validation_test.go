package configuration

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSettings() Settings {
	return Settings{
		Fan: FanSettings{
			Mode:   FanModeCurve,
			Manual: ManualFanConfig{DutyPct: 50},
			Curve: CurveConfig{
				Points:         DefaultCurvePoints(),
				FallbackSensor: DefaultFallbackSensor,
				PollInterval:   2 * time.Second,
				Hysteresis:     2,
				RateLimit:      10,
			},
		},
		Power: PowerSettings{
			Mode: PowerModeManual,
			Manual: PowerTargets{
				TdpWatts: Setting[float64]{Enabled: true, Value: 28},
			},
			Reapply: ReapplyConfig{
				PollInterval: 2 * time.Second,
				Tolerance:    1,
				QuietWindow:  6 * time.Second,
				Cooldown:     30 * time.Second,
			},
		},
		Battery: BatterySettings{
			Mode:            BatteryModeProfile,
			PollInterval:    5 * time.Second,
			ReapplyInterval: 30 * time.Minute,
		},
		Profiles: ProfilesConfig{
			PollInterval: 2 * time.Second,
			Battery: ProfileConfig{
				TdpWatts:    Setting[float64]{Enabled: true, Value: 15},
				ChargeRateC: Setting[float64]{Enabled: true, Value: 0.5},
			},
		},
		Telemetry: TelemetryPolicy{PollMs: 1000, RetainSeconds: 1800},
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	// GIVEN
	settings := validSettings()

	// WHEN
	err := ValidateSettings(&settings)

	// THEN
	assert.NoError(t, err)
}

func TestValidateFan_UnsupportedMode(t *testing.T) {
	// GIVEN
	settings := validSettings()
	settings.Fan.Mode = "turbo"

	// WHEN
	err := ValidateSettings(&settings)

	// THEN
	assert.ErrorIs(t, err, ErrConfigurationRejected)
	assert.EqualError(t, err, "configuration rejected: Fan: unsupported mode 'turbo', use one of: disabled | manual | curve")
}

func TestValidateCurvePoints_Empty(t *testing.T) {
	// WHEN
	err := ValidateCurvePoints(CurvePoints{})

	// THEN
	assert.ErrorIs(t, err, ErrConfigurationRejected)
	assert.EqualError(t, err, "configuration rejected: Curve: no points defined")
}

func TestValidateCurvePoints_NaN(t *testing.T) {
	// GIVEN
	points := CurvePoints{{Input: 50, Output: math.NaN()}}

	// WHEN
	err := ValidateCurvePoints(points)

	// THEN
	assert.ErrorIs(t, err, ErrConfigurationRejected)
}

func TestValidateCurvePoints_TooMany(t *testing.T) {
	// GIVEN
	var points CurvePoints
	for i := 0; i < 102; i++ {
		points = append(points, CurvePoint{Input: 50, Output: 50})
	}

	// WHEN
	err := ValidateCurvePoints(points)

	// THEN
	assert.ErrorIs(t, err, ErrConfigurationRejected)
}

func TestValidatePower_TdpOutOfRange(t *testing.T) {
	// GIVEN
	settings := validSettings()
	settings.Power.Manual.TdpWatts = Setting[float64]{Enabled: true, Value: 500}

	// WHEN
	err := ValidateSettings(&settings)

	// THEN
	assert.EqualError(t, err, "configuration rejected: Power: tdpWatts 500 must be within 1..150")
}

func TestValidatePower_DisabledSettingIsNotChecked(t *testing.T) {
	// GIVEN
	settings := validSettings()
	settings.Power.Manual.TdpWatts = Setting[float64]{Enabled: false, Value: 500}

	// WHEN
	err := ValidateSettings(&settings)

	// THEN
	assert.NoError(t, err)
}

func TestValidateProfile_SocThreshold(t *testing.T) {
	// GIVEN
	settings := validSettings()
	soc := 120.0
	settings.Profiles.Ac.SocThresholdPct = &soc

	// WHEN
	err := ValidateSettings(&settings)

	// THEN
	assert.EqualError(t, err, "configuration rejected: Profile ac: socThresholdPct 120 must be within 0..100")
}

func TestValidateTelemetryPolicy(t *testing.T) {
	// GIVEN
	policy := TelemetryPolicy{PollMs: 0, RetainSeconds: 60}

	// WHEN
	err := ValidateTelemetryPolicy(&policy)

	// THEN
	assert.ErrorIs(t, err, ErrConfigurationRejected)
}

func TestTelemetryPolicy_PollIntervalIsClamped(t *testing.T) {
	// GIVEN
	policy := TelemetryPolicy{PollMs: 50, RetainSeconds: 60}

	// THEN
	assert.Equal(t, 200*time.Millisecond, policy.PollInterval())
	assert.Equal(t, time.Minute, policy.Retention())
}

func TestValidatePlatform_MultipleLimitBackends(t *testing.T) {
	// GIVEN
	config := PlatformConfig{
		CommandTimeout: time.Second,
		FrameworkTool:  FrameworkToolConfig{Path: "framework_tool"},
		Limits: LimitsConfig{
			RyzenAdj: &RyzenAdjConfig{Path: "ryzenadj"},
			Rapl:     &RaplConfig{Path: "/sys/class/powercap/intel-rapl:0"},
		},
	}

	// WHEN
	err := validatePlatform(&config)

	// THEN
	assert.EqualError(t, err, "configuration rejected: Platform: only one limits backend can be used, use one of: ryzenAdj | rapl")
}

func TestValidateCalibration_InvalidSweep(t *testing.T) {
	// GIVEN
	config := CalibrationConfig{
		Sweep:           []float64{100, 150},
		SampleInterval:  time.Second,
		WindowSize:      5,
		StdDevThreshold: 40,
		LevelTimeout:    20 * time.Second,
	}

	// WHEN
	err := validateCalibration(&config)

	// THEN
	assert.EqualError(t, err, "configuration rejected: Calibration: invalid sweep duty 150, must be within 0..100")
}

func TestValidateProfile_CpuPolicy(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(profile *ProfileConfig)
		expected string
	}{
		{
			name: "empty governor",
			mutate: func(profile *ProfileConfig) {
				profile.Governor = Setting[string]{Enabled: true, Value: ""}
			},
			expected: "configuration rejected: Profile battery: invalid governor ''",
		},
		{
			name: "epp with whitespace",
			mutate: func(profile *ProfileConfig) {
				profile.EppPreference = Setting[string]{Enabled: true, Value: "balance power"}
			},
			expected: "configuration rejected: Profile battery: invalid eppPreference 'balance power'",
		},
		{
			name: "negative frequency",
			mutate: func(profile *ProfileConfig) {
				profile.MinFreqMhz = Setting[float64]{Enabled: true, Value: -1}
			},
			expected: "configuration rejected: Profile battery: minFreqMhz must be > 0",
		},
		{
			name: "inverted frequency limits",
			mutate: func(profile *ProfileConfig) {
				profile.MinFreqMhz = Setting[float64]{Enabled: true, Value: 3000}
				profile.MaxFreqMhz = Setting[float64]{Enabled: true, Value: 2000}
			},
			expected: "configuration rejected: Profile battery: minFreqMhz 3000 must not exceed maxFreqMhz 2000",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN
			settings := validSettings()
			tc.mutate(&settings.Profiles.Battery)

			// WHEN
			err := ValidateSettings(&settings)

			// THEN
			assert.EqualError(t, err, tc.expected)
		})
	}
}

func TestValidateProfile_DisabledCpuPolicyIsNotChecked(t *testing.T) {
	// GIVEN
	settings := validSettings()
	settings.Profiles.Battery.Governor = Setting[string]{Enabled: false, Value: ""}
	settings.Profiles.Battery.MinFreqMhz = Setting[float64]{Enabled: true, Value: 3000}
	settings.Profiles.Battery.MaxFreqMhz = Setting[float64]{Enabled: false, Value: 2000}
	settings.Power.Manual.EppPreference = Setting[string]{Enabled: true, Value: "balance_power"}

	// WHEN
	err := ValidateSettings(&settings)

	// THEN
	assert.NoError(t, err)
}
