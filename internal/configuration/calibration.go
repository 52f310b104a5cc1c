package configuration

import "time"

type CalibrationConfig struct {
	// Sweep is the sequence of duty levels, 0 is always appended
	Sweep           []float64     `json:"sweep"`
	SampleInterval  time.Duration `json:"sampleInterval"`
	WindowSize      int           `json:"windowSize"`
	StdDevThreshold float64       `json:"stdDevThreshold"`
	LevelTimeout    time.Duration `json:"levelTimeout"`
}

// CalibrationPoint is a single measured (duty, response) pair
type CalibrationPoint struct {
	Duty     float64 `json:"duty"`
	Response float64 `json:"response"`
}
