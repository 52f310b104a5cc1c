package configuration

import (
	"reflect"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCurve(t *testing.T, input map[string]interface{}) CurveConfig {
	var result CurveConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: decodeHooks(),
		Result:     &result,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(input))
	return result
}

func TestCurvePointsHook_PairList(t *testing.T) {
	// GIVEN
	input := map[string]interface{}{
		"points": []interface{}{
			[]interface{}{50, 0},
			[]interface{}{75, 30.5},
		},
		"pollInterval": "2s",
	}

	// WHEN
	result := decodeCurve(t, input)

	// THEN
	assert.Equal(t, CurvePoints{{Input: 50, Output: 0}, {Input: 75, Output: 30.5}}, result.Points)
	assert.Equal(t, "2s", result.PollInterval.String())
}

func TestCurvePointsHook_ObjectList(t *testing.T) {
	// GIVEN
	input := map[string]interface{}{
		"points": []interface{}{
			map[string]interface{}{"input": 40, "output": 10},
		},
	}

	// WHEN
	result := decodeCurve(t, input)

	// THEN
	assert.Equal(t, CurvePoints{{Input: 40, Output: 10}}, result.Points)
}

func TestCurvePointsHook_Map(t *testing.T) {
	// GIVEN
	input := map[string]interface{}{
		"points": map[interface{}]interface{}{
			90: 50,
		},
	}

	// WHEN
	result := decodeCurve(t, input)

	// THEN
	assert.Equal(t, CurvePoints{{Input: 90, Output: 50}}, result.Points)
}

func TestCurvePointsHook_InvalidPair(t *testing.T) {
	// GIVEN
	hook := curvePointsHookFunc()
	data := []interface{}{[]interface{}{1, 2, 3}}

	// WHEN
	_, err := hook(reflect.TypeOf(data), reflect.TypeOf(CurvePoints{}), data)

	// THEN
	assert.EqualError(t, err, "curve point 0 must have exactly 2 values, got 3")
}

func TestCurvePointsHook_IgnoresOtherTypes(t *testing.T) {
	// GIVEN
	hook := curvePointsHookFunc()

	// WHEN
	result, err := hook(reflect.TypeOf(""), reflect.TypeOf(""), "value")

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, "value", result)
}

func TestDecodeInto_MergesOntoExisting(t *testing.T) {
	// GIVEN
	fan := FanSettings{
		Mode:   FanModeCurve,
		Manual: ManualFanConfig{DutyPct: 50},
		Curve: CurveConfig{
			Points:       DefaultCurvePoints(),
			PollInterval: 2 * time.Second,
			Hysteresis:   2,
		},
	}
	input := map[string]interface{}{
		"mode":   "manual",
		"manual": map[string]interface{}{"dutyPct": 35.0},
		"curve": map[string]interface{}{
			"points":       []interface{}{[]interface{}{50.0, 0.0}},
			"pollInterval": "500ms",
		},
	}

	// WHEN
	err := DecodeInto(input, &fan)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, FanModeManual, fan.Mode)
	assert.Equal(t, 35.0, fan.Manual.DutyPct)
	assert.Equal(t, CurvePoints{{Input: 50, Output: 0}}, fan.Curve.Points)
	assert.Equal(t, 500*time.Millisecond, fan.Curve.PollInterval)
	assert.Equal(t, 2.0, fan.Curve.Hysteresis)
}

func TestDecodeInto_InvalidType(t *testing.T) {
	// GIVEN
	fan := FanSettings{}
	input := map[string]interface{}{
		"manual": map[string]interface{}{"dutyPct": "fast"},
	}

	// WHEN
	err := DecodeInto(input, &fan)

	// THEN
	assert.ErrorIs(t, err, ErrConfigurationRejected)
}

func TestDecodeProfile_CpuPolicy(t *testing.T) {
	// GIVEN
	input := map[string]interface{}{
		"tdpWatts":      map[string]interface{}{"enabled": true, "value": 15},
		"governor":      map[string]interface{}{"enabled": true, "value": "powersave"},
		"eppPreference": map[string]interface{}{"enabled": true, "value": "power"},
		"minFreqMhz":    map[string]interface{}{"enabled": true, "value": 400},
		"maxFreqMhz":    map[string]interface{}{"enabled": false, "value": 2000},
	}

	// WHEN
	var result ProfileConfig
	err := DecodeInto(input, &result)

	// THEN
	require.NoError(t, err)
	targets := result.PowerTargets()
	assert.Equal(t, Setting[float64]{Enabled: true, Value: 15}, targets.TdpWatts)
	assert.Equal(t, Setting[string]{Enabled: true, Value: "powersave"}, targets.Governor)
	assert.Equal(t, Setting[string]{Enabled: true, Value: "power"}, targets.EppPreference)
	assert.Equal(t, Setting[float64]{Enabled: true, Value: 400}, targets.MinFreqMhz)
	assert.Equal(t, Setting[float64]{Enabled: false, Value: 2000}, targets.MaxFreqMhz)
}
