package controller

import (
	"context"
	"testing"
	"time"

	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/testingutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fanStore(mode configuration.FanMode, release bool) *store.Store {
	return createStore(func(settings *configuration.Settings) {
		settings.Fan.Mode = mode
		settings.Fan.ReleaseOnDisable = release
	})
}

func dutiesOf(calls []testingutils.Call) []float64 {
	result := []float64{}
	for _, call := range calls {
		result = append(result, call.Value)
	}
	return result
}

func TestFanController_ManualReassertsEveryTick(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	controller := NewFanController(fake, fanStore(configuration.FanModeManual, true))

	// WHEN
	for i := 0; i < 3; i++ {
		controller.Tick(context.Background())
	}

	// THEN
	assert.Equal(t, []float64{35, 35, 35}, dutiesOf(fake.CallsOf("ApplyFanDuty")))
	status := controller.Status()
	assert.Equal(t, configuration.FanModeManual, status.Mode)
	assert.Equal(t, 35.0, *status.Duty)
}

func TestFanController_DisabledReleasesOnce(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	controller := NewFanController(fake, fanStore(configuration.FanModeDisabled, true))

	// WHEN
	for i := 0; i < 5; i++ {
		controller.Tick(context.Background())
	}

	// THEN
	assert.Len(t, fake.CallsOf("RestoreAutoFan"), 1)
	assert.Empty(t, fake.CallsOf("ApplyFanDuty"))
}

func TestFanController_DisabledRetriesRelease(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	fake.SetErrors(nil, nil, platform.ErrTransientWrite)
	controller := NewFanController(fake, fanStore(configuration.FanModeDisabled, true))

	// WHEN
	controller.Tick(context.Background())
	fake.SetErrors(nil, nil, nil)
	controller.Tick(context.Background())
	controller.Tick(context.Background())

	// THEN
	assert.Len(t, fake.CallsOf("RestoreAutoFan"), 2)
}

func TestFanController_DisabledWithoutRelease(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	controller := NewFanController(fake, fanStore(configuration.FanModeDisabled, false))

	// WHEN
	for i := 0; i < 3; i++ {
		controller.Tick(context.Background())
	}

	// THEN
	assert.Empty(t, fake.Calls())
}

func TestFanController_CurveScenario(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	controller := NewFanController(fake, fanStore(configuration.FanModeCurve, true))
	temperatures := []float64{40, 51, 80, 80, 95}

	// WHEN
	var interval time.Duration
	for _, temperature := range temperatures {
		fake.SetTemperature(configuration.DefaultFallbackSensor, temperature)
		interval = controller.Tick(context.Background())
	}

	// THEN
	assert.Equal(t, []float64{0, 1, 11, 21, 31}, dutiesOf(fake.CallsOf("ApplyFanDuty")))
	assert.Equal(t, 2*time.Second, interval)
	status := controller.Status()
	assert.Equal(t, configuration.DefaultFallbackSensor, status.DrivingSensor)
	assert.Equal(t, 75.0, *status.Target)
	assert.Equal(t, 31.0, *status.Duty)
}

func TestFanController_CurveWaitsForFreshReading(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	fake.SetTemperature(configuration.DefaultFallbackSensor, 80)
	fake.SetErrors(platform.ErrTransientRead, nil, nil)
	controller := NewFanController(fake, fanStore(configuration.FanModeCurve, true))

	// WHEN
	controller.Tick(context.Background())
	withoutReading := fake.Calls()
	fake.SetErrors(nil, nil, nil)
	controller.Tick(context.Background())

	// THEN
	assert.Empty(t, withoutReading)
	assert.Equal(t, []float64{10}, dutiesOf(fake.CallsOf("ApplyFanDuty")))
}

func TestFanController_CurveWithoutSensor(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	fake.SetTemperature("F75303_Local", 80)
	controller := NewFanController(fake, fanStore(configuration.FanModeCurve, true))

	// WHEN
	controller.Tick(context.Background())
	controller.Tick(context.Background())

	// THEN
	assert.Empty(t, fake.Calls())
}

func TestFanController_ModeSwitchStartsFromLastDuty(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	fake.SetTemperature(configuration.DefaultFallbackSensor, 80)
	s := fanStore(configuration.FanModeManual, true)
	controller := NewFanController(fake, s)
	controller.Tick(context.Background())

	// WHEN
	fan := s.Fan()
	fan.Mode = configuration.FanModeCurve
	_, err := s.SetFan(fan)
	require.NoError(t, err)
	controller.Tick(context.Background())

	// THEN
	assert.Equal(t, []float64{35, 37}, dutiesOf(fake.CallsOf("ApplyFanDuty")))
}

func TestFanController_SuspendAndResume(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	fake.SetTemperature(configuration.DefaultFallbackSensor, 40)
	controller := NewFanController(fake, fanStore(configuration.FanModeCurve, true))
	controller.Tick(context.Background())

	// WHEN
	controller.Suspend()
	fake.SetTemperature(configuration.DefaultFallbackSensor, 80)
	controller.Tick(context.Background())
	suspended := controller.Status().Suspended
	callsWhileSuspended := len(fake.Calls())
	controller.Resume()
	controller.Tick(context.Background())

	// THEN
	assert.True(t, suspended)
	assert.Equal(t, 1, callsWhileSuspended)
	// the curve is entered again from 0 since the duty is unknown after a suspension
	assert.Equal(t, []float64{0, 10}, dutiesOf(fake.CallsOf("ApplyFanDuty")))
	assert.False(t, controller.Status().Suspended)
}

func TestFanController_LockedDomainIsNotCommanded(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	s := fanStore(configuration.FanModeManual, true)
	require.NoError(t, s.Lock(store.DomainFan, "calibration"))
	controller := NewFanController(fake, s)

	// WHEN
	interval := controller.Tick(context.Background())

	// THEN
	assert.Equal(t, DefaultTickInterval, interval)
	assert.Empty(t, fake.Calls())
}

func TestFanModeOf_RejectsUnknownMode(t *testing.T) {
	// GIVEN
	settings := testSettings().Fan
	settings.Mode = "turbo"

	// WHEN
	_, err := FanModeOf(settings)

	// THEN
	assert.ErrorIs(t, err, configuration.ErrConfigurationRejected)
}

func TestFanController_CalibrationFromDisabledLeavesFanToFirmware(t *testing.T) {
	// GIVEN
	fake := testingutils.NewFakePlatform()
	s := fanStore(configuration.FanModeDisabled, false)
	controller := NewFanController(fake, s)
	controller.Tick(context.Background())
	engine := calibration.NewEngine(fake, s, controller)
	policy := configuration.CalibrationConfig{
		Sweep:           []float64{100, 50},
		SampleInterval:  2 * time.Millisecond,
		WindowSize:      3,
		StdDevThreshold: 40,
		LevelTimeout:    500 * time.Millisecond,
	}

	// WHEN
	_, err := engine.Run(context.Background(), store.DomainFan, nil, policy)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		controller.Tick(context.Background())
	}

	// THEN
	_, commanded := fake.Duty()
	assert.False(t, commanded)
	assert.Len(t, fake.CallsOf("RestoreAutoFan"), 1)
	assert.Equal(t, []float64{100, 50, 0}, dutiesOf(fake.CallsOf("ApplyFanDuty")))
	assert.Equal(t, configuration.FanModeDisabled, s.Fan().Mode)
}
