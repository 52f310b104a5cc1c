package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	mu           sync.Mutex
	settings     []configuration.Settings
	calibrations [][]configuration.CalibrationPoint
	err          error
}

func (r *recordingSaver) SaveSettings(settings configuration.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = append(r.settings, settings)
	return r.err
}

func (r *recordingSaver) SaveCalibration(domain string, table []configuration.CalibrationPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrations = append(r.calibrations, table)
	return r.err
}

func defaultSettings() configuration.Settings {
	return configuration.Settings{
		Fan: configuration.FanSettings{
			Mode:   configuration.FanModeDisabled,
			Manual: configuration.ManualFanConfig{DutyPct: 50},
			Curve: configuration.CurveConfig{
				Points:         configuration.DefaultCurvePoints(),
				FallbackSensor: configuration.DefaultFallbackSensor,
				PollInterval:   2 * time.Second,
				Hysteresis:     2,
				RateLimit:      100,
			},
		},
		Power: configuration.PowerSettings{
			Mode: configuration.PowerModeDisabled,
			Reapply: configuration.ReapplyConfig{
				PollInterval: 2 * time.Second,
				Tolerance:    1,
				QuietWindow:  6 * time.Second,
				Cooldown:     30 * time.Second,
			},
		},
		Battery: configuration.BatterySettings{
			Mode:            configuration.BatteryModeDisabled,
			PollInterval:    5 * time.Second,
			ReapplyInterval: 30 * time.Minute,
		},
		Profiles: configuration.ProfilesConfig{PollInterval: 2 * time.Second},
		Telemetry: configuration.TelemetryPolicy{
			PollMs:        configuration.DefaultTelemetryPollMs,
			RetainSeconds: configuration.DefaultTelemetryRetainSeconds,
		},
	}
}

func TestStore_SetFan(t *testing.T) {
	// GIVEN
	saver := &recordingSaver{}
	s := New(defaultSettings(), saver)
	fan := s.Fan()
	fan.Mode = configuration.FanModeManual
	fan.Manual.DutyPct = 70

	// WHEN
	snapshot, err := s.SetFan(fan)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snapshot.Generation)
	assert.Equal(t, snapshot, s.Current())
	assert.Equal(t, configuration.FanModeManual, s.Fan().Mode)
	require.Len(t, saver.settings, 1)
	assert.Equal(t, 70.0, saver.settings[0].Fan.Manual.DutyPct)
}

func TestStore_RejectedWriteKeepsPreviousSettings(t *testing.T) {
	// GIVEN
	saver := &recordingSaver{}
	s := New(defaultSettings(), saver)
	before := s.Current()
	fan := s.Fan()
	fan.Mode = "turbo"

	// WHEN
	_, err := s.SetFan(fan)

	// THEN
	assert.ErrorIs(t, err, configuration.ErrConfigurationRejected)
	assert.Same(t, before, s.Current())
	assert.Empty(t, saver.settings)
}

func TestStore_ReadersGetCopies(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)

	// WHEN
	fan := s.Fan()
	fan.Curve.Points[0].Output = 99

	// THEN
	assert.Equal(t, 0.0, s.Fan().Curve.Points[0].Output)
}

func TestStore_SaveFailureStillPublishes(t *testing.T) {
	// GIVEN
	saver := &recordingSaver{err: errors.New("disk full")}
	s := New(defaultSettings(), saver)
	policy := configuration.TelemetryPolicy{PollMs: 500, RetainSeconds: 60}

	// WHEN
	_, err := s.SetTelemetryPolicy(policy)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, policy, s.TelemetryPolicy())
}

func TestStore_SetProfile(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)
	profile := configuration.ProfileConfig{
		TdpWatts: configuration.Setting[float64]{Enabled: true, Value: 15},
	}

	// WHEN
	_, err := s.SetProfile(configuration.PowerSourceBattery, profile)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, profile, s.Profile(configuration.PowerSourceBattery))
	assert.Equal(t, configuration.ProfileConfig{}, s.Profile(configuration.PowerSourceAc))
}

func TestStore_SetProfile_Rejected(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)
	soc := 120.0
	profile := configuration.ProfileConfig{SocThresholdPct: &soc}

	// WHEN
	_, err := s.SetProfile(configuration.PowerSourceAc, profile)

	// THEN
	assert.ErrorIs(t, err, configuration.ErrConfigurationRejected)
	assert.Equal(t, uint64(1), s.Generation())
}

func TestStore_LockedDomain(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)
	require.NoError(t, s.Lock(DomainFan, "calibration"))
	fan := s.Fan()
	fan.Mode = configuration.FanModeManual

	// WHEN
	_, err := s.SetFan(fan)
	_, ownerErr := s.SetFanAs("calibration", fan)

	// THEN
	assert.ErrorIs(t, err, ErrDomainLocked)
	assert.NoError(t, ownerErr)
	assert.True(t, s.IsLocked(DomainFan))
	assert.False(t, s.IsLocked(DomainPower))
}

func TestStore_LockTwice(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)
	require.NoError(t, s.Lock(DomainFan, "a"))

	// WHEN
	err := s.Lock(DomainFan, "b")

	// THEN
	assert.ErrorIs(t, err, ErrDomainLocked)
}

func TestStore_UnlockOnlyByOwner(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)
	require.NoError(t, s.Lock(DomainFan, "a"))

	// WHEN
	s.Unlock(DomainFan, "b")
	stillLocked := s.IsLocked(DomainFan)
	s.Unlock(DomainFan, "a")

	// THEN
	assert.True(t, stillLocked)
	assert.False(t, s.IsLocked(DomainFan))
}

func TestStore_SetFanCalibration(t *testing.T) {
	// GIVEN
	saver := &recordingSaver{}
	s := New(defaultSettings(), saver)
	table := []configuration.CalibrationPoint{{Duty: 0, Response: 0}, {Duty: 100, Response: 5000}}

	// WHEN
	_, err := s.SetFanCalibration(table)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, table, s.FanCalibration())
	assert.Equal(t, [][]configuration.CalibrationPoint{table}, saver.calibrations)
}

func TestStore_ConcurrentWritesIncrementGeneration(t *testing.T) {
	// GIVEN
	s := New(defaultSettings(), nil)
	var wg sync.WaitGroup

	// WHEN
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.SetTelemetryPolicy(configuration.TelemetryPolicy{PollMs: 1000 + i, RetainSeconds: 60})
		}(i)
	}
	wg.Wait()

	// THEN
	assert.Equal(t, uint64(21), s.Generation())
}
