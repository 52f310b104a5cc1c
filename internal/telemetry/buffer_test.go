package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var origin = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleAt(seconds int, apu float64) Sample {
	return Sample{
		Timestamp:    origin.Add(time.Duration(seconds) * time.Second),
		Temperatures: map[string]float64{"APU": apu},
		FanRpms:      []float64{},
	}
}

func TestRetentionBuffer_Trim(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(60 * time.Second)

	// WHEN
	buffer.Insert(sampleAt(0, 40))
	buffer.Insert(sampleAt(30, 41))
	buffer.Insert(sampleAt(61, 42))

	// THEN
	samples := buffer.Snapshot()
	require.Len(t, samples, 2)
	assert.Equal(t, origin.Add(30*time.Second), samples[0].Timestamp)
	assert.Equal(t, origin.Add(61*time.Second), samples[1].Timestamp)
}

func TestRetentionBuffer_KeepsSampleAtCutoff(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(60 * time.Second)

	// WHEN
	buffer.Insert(sampleAt(0, 40))
	buffer.Insert(sampleAt(60, 41))

	// THEN
	assert.Equal(t, 2, buffer.Len())
}

func TestRetentionBuffer_MonotonicTimestamps(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(time.Hour)
	buffer.Insert(sampleAt(10, 40))

	// WHEN
	buffer.Insert(sampleAt(5, 41))

	// THEN
	samples := buffer.Snapshot()
	require.Len(t, samples, 2)
	assert.Equal(t, samples[0].Timestamp, samples[1].Timestamp)
	assert.Equal(t, 41.0, samples[1].Temperatures["APU"])
}

func TestRetentionBuffer_Since(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(time.Hour)
	for i := 0; i < 5; i++ {
		buffer.Insert(sampleAt(i*10, float64(40+i)))
	}

	// WHEN
	samples := buffer.Since(origin.Add(20 * time.Second))

	// THEN
	require.Len(t, samples, 3)
	assert.Equal(t, 42.0, samples[0].Temperatures["APU"])
	assert.Equal(t, 44.0, samples[2].Temperatures["APU"])
}

func TestRetentionBuffer_ReturnsCopies(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(time.Hour)
	original := sampleAt(0, 40)
	buffer.Insert(original)

	// WHEN
	original.Temperatures["APU"] = 99
	latest, ok := buffer.Latest()
	require.True(t, ok)
	latest.Temperatures["APU"] = 98

	// THEN
	again, _ := buffer.Latest()
	assert.Equal(t, 40.0, again.Temperatures["APU"])
}

func TestRetentionBuffer_Empty(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(time.Hour)

	// WHEN
	_, ok := buffer.Latest()

	// THEN
	assert.False(t, ok)
	assert.Empty(t, buffer.Snapshot())
}

func TestRetentionBuffer_SetRetention(t *testing.T) {
	// GIVEN
	buffer := NewRetentionBuffer(time.Hour)
	buffer.Insert(sampleAt(0, 40))
	buffer.Insert(sampleAt(30, 41))

	// WHEN
	buffer.SetRetention(10 * time.Second)
	buffer.Insert(sampleAt(35, 42))

	// THEN
	assert.Equal(t, 2, buffer.Len())
	assert.Equal(t, 10*time.Second, buffer.Retention())
}
