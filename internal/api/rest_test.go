package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/controller"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/telemetry"
	"github.com/fwctl/fwctl/internal/testingutils"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() configuration.Settings {
	return configuration.Settings{
		Fan: configuration.FanSettings{
			Mode:   configuration.FanModeDisabled,
			Manual: configuration.ManualFanConfig{DutyPct: 50},
			Curve: configuration.CurveConfig{
				Points:         configuration.DefaultCurvePoints(),
				FallbackSensor: configuration.DefaultFallbackSensor,
				PollInterval:   2 * time.Second,
				Hysteresis:     2,
				RateLimit:      10,
			},
			ReleaseOnDisable: true,
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
		Profiles:  configuration.ProfilesConfig{PollInterval: 2 * time.Second},
		Telemetry: configuration.TelemetryPolicy{PollMs: 1000, RetainSeconds: 60},
	}
}

func calibrationPolicy() configuration.CalibrationConfig {
	return configuration.CalibrationConfig{
		Sweep:           []float64{100, 50},
		SampleInterval:  2 * time.Millisecond,
		WindowSize:      3,
		StdDevThreshold: 40,
		LevelTimeout:    500 * time.Millisecond,
	}
}

type fixture struct {
	platform *testingutils.FakePlatform
	services Services
	rest     *echo.Echo
}

func createFixture(t *testing.T) *fixture {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fake := testingutils.NewFakePlatform()
	fake.SetTemperature(configuration.DefaultFallbackSensor, 55)
	s := store.New(testSettings(), nil)
	sampler := telemetry.NewSampler(fake, s.TelemetryPolicy)
	selector := controller.NewProfileSelector(s, sampler)
	fan := controller.NewFanController(fake, s)
	services := Services{
		Store:     s,
		Telemetry: sampler,
		Selector:  selector,
		Fan:       fan,
		Power:     controller.NewPowerController(fake, s, selector),
		Battery:   controller.NewBatteryController(fake, s, selector),
		Calibration: calibration.NewSessions(ctx, func() *calibration.Engine {
			return calibration.NewEngine(fake, s, fan)
		}, calibrationPolicy),
	}
	return &fixture{
		platform: fake,
		services: services,
		rest:     CreateRestService(services, prometheus.NewRegistry()),
	}
}

func (f *fixture) request(method string, path string, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if len(body) > 0 {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		request = httptest.NewRequest(method, path, nil)
	}
	recorder := httptest.NewRecorder()
	f.rest.ServeHTTP(recorder, request)
	return recorder
}

func TestAlive(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodGet, "/alive", "")

	// THEN
	assert.Equal(t, http.StatusOK, response.Code)
}

func TestPutFan_MergesPartialUpdate(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	generation := f.services.Store.Generation()

	// WHEN
	response := f.request(http.MethodPut, "/fan/", `{"mode": "manual", "manual": {"dutyPct": 40}}`)

	// THEN
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	fan := f.services.Store.Fan()
	assert.Equal(t, configuration.FanModeManual, fan.Mode)
	assert.Equal(t, 40.0, fan.Manual.DutyPct)
	assert.Equal(t, configuration.DefaultCurvePoints(), fan.Curve.Points)
	assert.True(t, fan.ReleaseOnDisable)
	assert.Equal(t, generation+1, f.services.Store.Generation())

	var result configuration.FanSettings
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &result))
	assert.Equal(t, 40.0, result.Manual.DutyPct)
}

func TestPutFan_Rejected(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	before := f.services.Store.Current()

	// WHEN
	invalidDuty := f.request(http.MethodPut, "/fan/", `{"manual": {"dutyPct": 140}}`)
	invalidMode := f.request(http.MethodPut, "/fan/", `{"mode": "turbo"}`)
	invalidType := f.request(http.MethodPut, "/fan/", `{"manual": {"dutyPct": "fast"}}`)

	// THEN
	assert.Equal(t, http.StatusBadRequest, invalidDuty.Code)
	assert.Equal(t, http.StatusBadRequest, invalidMode.Code)
	assert.Equal(t, http.StatusBadRequest, invalidType.Code)
	assert.Same(t, before, f.services.Store.Current())
}

func TestPutFan_LockedDomain(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	require.NoError(t, f.services.Store.Lock(store.DomainFan, "calibration"))

	// WHEN
	response := f.request(http.MethodPut, "/fan/", `{"mode": "manual"}`)

	// THEN
	assert.Equal(t, http.StatusConflict, response.Code)
	assert.Equal(t, configuration.FanModeDisabled, f.services.Store.Fan().Mode)
}

func TestPutPower_AcceptsDurationStrings(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodPut, "/power/", `{"mode": "manual", "manual": {"tdpWatts": {"enabled": true, "value": 25}}, "reapply": {"quietWindow": "10s"}}`)

	// THEN
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	power := f.services.Store.Power()
	assert.Equal(t, configuration.PowerModeManual, power.Mode)
	assert.Equal(t, configuration.Setting[float64]{Enabled: true, Value: 25}, power.Manual.TdpWatts)
	assert.Equal(t, 10*time.Second, power.Reapply.QuietWindow)
	assert.Equal(t, 30*time.Second, power.Reapply.Cooldown)
}

func TestPutProfile(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodPut, "/profile/battery/", `{"tdpWatts": {"enabled": true, "value": 12}}`)
	unknown := f.request(http.MethodPut, "/profile/usb/", `{"tdpWatts": {"enabled": true, "value": 12}}`)

	// THEN
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	assert.Equal(t, 12.0, f.services.Store.Profile(configuration.PowerSourceBattery).TdpWatts.Value)
	assert.False(t, f.services.Store.Profile(configuration.PowerSourceAc).TdpWatts.Enabled)
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestPutTelemetryPolicy(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodPut, "/telemetry/policy/", `{"pollMs": 500}`)
	rejected := f.request(http.MethodPut, "/telemetry/policy/", `{"retainSeconds": 0}`)

	// THEN
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, http.StatusBadRequest, rejected.Code)
	assert.Equal(t, configuration.TelemetryPolicy{PollMs: 500, RetainSeconds: 60}, f.services.Store.TelemetryPolicy())
}

func TestPut_EmptyBody(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodPut, "/battery/", "")

	// THEN
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestGetSamples(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	require.NoError(t, f.services.Telemetry.SampleOnce(context.Background()))

	// WHEN
	all := f.request(http.MethodGet, "/telemetry/samples/", "")
	recent := f.request(http.MethodGet, "/telemetry/samples/?since=1m", "")
	invalid := f.request(http.MethodGet, "/telemetry/samples/?since=yesterday", "")

	// THEN
	require.Equal(t, http.StatusOK, all.Code)
	var samples []telemetry.Sample
	require.NoError(t, json.Unmarshal(all.Body.Bytes(), &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, 55.0, samples[0].Temperatures[configuration.DefaultFallbackSensor])
	assert.Equal(t, http.StatusOK, recent.Code)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestParseSince(t *testing.T) {
	// GIVEN
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// WHEN
	empty, emptyErr := parseSince("", now)
	relative, relativeErr := parseSince("5m", now)
	absolute, absoluteErr := parseSince("2024-05-01T11:00:00Z", now)
	_, invalidErr := parseSince("yesterday", now)

	// THEN
	assert.NoError(t, emptyErr)
	assert.True(t, empty.IsZero())
	assert.NoError(t, relativeErr)
	assert.Equal(t, now.Add(-5*time.Minute), relative)
	assert.NoError(t, absoluteErr)
	assert.Equal(t, now.Add(-time.Hour), absolute)
	assert.ErrorIs(t, invalidErr, configuration.ErrConfigurationRejected)
}

func TestCalibrationTable(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	missing := f.request(http.MethodGet, "/calibration/table/", "")
	_, err := f.services.Store.SetFanCalibration([]configuration.CalibrationPoint{
		{Duty: 0, Response: 0},
		{Duty: 50, Response: 2500},
		{Duty: 100, Response: 5000},
	})
	require.NoError(t, err)

	// WHEN
	table := f.request(http.MethodGet, "/calibration/table/", "")
	inverse := f.request(http.MethodGet, "/calibration/inverse/?response=2500", "")
	outOfRange := f.request(http.MethodGet, "/calibration/inverse/?response=9000", "")

	// THEN
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusOK, table.Code)
	require.Equal(t, http.StatusOK, inverse.Code)
	var lookup InverseLookup
	require.NoError(t, json.Unmarshal(inverse.Body.Bytes(), &lookup))
	assert.InDelta(t, 50, lookup.Duty, 0.01)
	assert.Equal(t, http.StatusBadRequest, outOfRange.Code)
}

func TestCalibration_RunThroughApi(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	started := f.request(http.MethodPost, "/calibration/", `{"domain": "fan"}`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := f.services.Calibration.Wait(ctx, store.DomainFan)

	// THEN
	assert.Equal(t, http.StatusAccepted, started.Code)
	require.NoError(t, err)
	assert.Equal(t, calibration.StateCompleted, status.State)
	assert.Len(t, f.services.Store.FanCalibration(), 3)

	current := f.request(http.MethodGet, "/calibration/?domain=fan", "")
	assert.Equal(t, http.StatusOK, current.Code)
	// nothing to cancel anymore
	cancelled := f.request(http.MethodDelete, "/calibration/?domain=fan", "")
	assert.Equal(t, http.StatusNotFound, cancelled.Code)
}

func TestCalibration_UnsupportedDomain(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodPost, "/calibration/", `{"domain": "power"}`)
	status := f.request(http.MethodGet, "/calibration/?domain=power", "")

	// THEN
	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Equal(t, http.StatusNotFound, status.Code)
}

func TestCalibration_InvalidSweep(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	response := f.request(http.MethodPost, "/calibration/", `{"domain": "fan", "sweep": [100, 150]}`)

	// THEN
	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.False(t, f.services.Calibration.Active())
}

func TestStatus(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	require.NoError(t, f.services.Telemetry.SampleOnce(context.Background()))

	// WHEN
	response := f.request(http.MethodGet, "/status/", "")

	// THEN
	require.Equal(t, http.StatusOK, response.Code)
	var status Status
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &status))
	assert.Equal(t, uint64(1), status.Generation)
	assert.Equal(t, 1, status.Samples)
	assert.False(t, status.Calibrating)
	assert.Nil(t, status.Profile)
	require.NotNil(t, status.Latest)
}

func TestClient(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	server := httptest.NewServer(f.rest)
	defer server.Close()
	client := NewClient(server.URL)

	// WHEN
	aliveErr := client.Alive(context.Background())
	settings, settingsErr := client.Settings(context.Background())
	_, tableErr := client.CalibrationTable(context.Background())

	// THEN
	assert.NoError(t, aliveErr)
	assert.NoError(t, settingsErr)
	assert.Equal(t, f.services.Store.Settings().Fan, settings.Fan)
	var responseError *ResponseError
	require.ErrorAs(t, tableErr, &responseError)
	assert.Equal(t, http.StatusNotFound, responseError.StatusCode)
}
