package curves

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrivingValue_HottestWins(t *testing.T) {
	// GIVEN
	temperatures := map[string]float64{"APU": 61, "F75303_Local": 48, "Battery": 33}

	// WHEN
	value, sensor, ok := DrivingValue(temperatures, []string{"F75303_Local", "APU"}, "APU")

	// THEN
	assert.True(t, ok)
	assert.Equal(t, 61.0, value)
	assert.Equal(t, "APU", sensor)
}

func TestDrivingValue_Fallback(t *testing.T) {
	// GIVEN
	temperatures := map[string]float64{"APU": 55}

	// WHEN
	value, sensor, ok := DrivingValue(temperatures, []string{"missing"}, "APU")

	// THEN
	assert.True(t, ok)
	assert.Equal(t, 55.0, value)
	assert.Equal(t, "APU", sensor)
}

func TestDrivingValue_NothingAvailable(t *testing.T) {
	// WHEN
	_, _, ok := DrivingValue(map[string]float64{"CPU": 40}, nil, "APU")

	// THEN
	assert.False(t, ok)
}
