package configuration

import "time"

const DefaultFallbackSensor = "APU"

type CurvePoint struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// CurvePoints can be written as a list of [input, output] pairs
// or as a map of input: output in the config file.
type CurvePoints []CurvePoint

func DefaultCurvePoints() CurvePoints {
	return CurvePoints{
		{Input: 40, Output: 0},
		{Input: 60, Output: 40},
		{Input: 75, Output: 80},
		{Input: 85, Output: 100},
	}
}

type CurveConfig struct {
	Points CurvePoints `json:"points"`
	// Sensors used to drive the curve, the hottest one wins
	Sensors []string `json:"sensors"`
	// FallbackSensor is used when none of Sensors is available
	FallbackSensor string        `json:"fallbackSensor"`
	PollInterval   time.Duration `json:"pollInterval"`
	Hysteresis     float64       `json:"hysteresis"`
	// RateLimit is the maximum duty change per poll, <= 0 means unlimited
	RateLimit float64 `json:"rateLimit"`
}
