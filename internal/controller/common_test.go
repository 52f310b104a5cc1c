package controller

import (
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/telemetry"
)

var origin = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return origin.Add(time.Duration(seconds * float64(time.Second)))
}

func reapplyConfig() configuration.ReapplyConfig {
	return configuration.ReapplyConfig{
		PollInterval: 2 * time.Second,
		Tolerance:    1,
		QuietWindow:  6 * time.Second,
		Cooldown:     30 * time.Second,
	}
}

func testSettings() configuration.Settings {
	return configuration.Settings{
		Fan: configuration.FanSettings{
			Mode:   configuration.FanModeDisabled,
			Manual: configuration.ManualFanConfig{DutyPct: 35},
			Curve: configuration.CurveConfig{
				Points: configuration.CurvePoints{
					{Input: 50, Output: 0},
					{Input: 75, Output: 30},
					{Input: 90, Output: 50},
				},
				FallbackSensor: configuration.DefaultFallbackSensor,
				PollInterval:   2 * time.Second,
				Hysteresis:     2,
				RateLimit:      10,
			},
			ReleaseOnDisable: true,
		},
		Power: configuration.PowerSettings{
			Mode:    configuration.PowerModeDisabled,
			Reapply: reapplyConfig(),
		},
		Battery: configuration.BatterySettings{
			Mode:            configuration.BatteryModeDisabled,
			PollInterval:    5 * time.Second,
			ReapplyInterval: 30 * time.Minute,
		},
		Profiles: configuration.ProfilesConfig{
			PollInterval: 2 * time.Second,
			Ac: configuration.ProfileConfig{
				TdpWatts: configuration.Setting[float64]{Enabled: true, Value: 28},
			},
			Battery: configuration.ProfileConfig{
				TdpWatts:    configuration.Setting[float64]{Enabled: true, Value: 15},
				ChargeRateC: configuration.Setting[float64]{Enabled: true, Value: 0.5},
			},
		},
		Telemetry: configuration.TelemetryPolicy{PollMs: 1000, RetainSeconds: 60},
	}
}

func createStore(mutate func(settings *configuration.Settings)) *store.Store {
	settings := testSettings()
	if mutate != nil {
		mutate(&settings)
	}
	return store.New(settings, nil)
}

type staticSamples struct {
	sample *telemetry.Sample
}

func (s *staticSamples) Latest() (telemetry.Sample, bool) {
	if s.sample == nil {
		return telemetry.Sample{}, false
	}
	return *s.sample, true
}

func (s *staticSamples) setAc(present *bool) {
	sample := telemetry.Sample{Timestamp: origin, Temperatures: map[string]float64{}}
	if present != nil {
		p := *present
		sample.Battery = &telemetry.BatterySnapshot{AcPresent: &p}
	}
	s.sample = &sample
}

func boolPtr(value bool) *bool {
	return &value
}
