package curves

import (
	"math"

	"github.com/fwctl/fwctl/internal/control_loop"
	"github.com/fwctl/fwctl/internal/util"
)

// State is the memory of a curve evaluation between two ticks.
type State struct {
	Initialized bool `json:"initialized"`
	// LastSensorValue is the sensor value the current Target was computed from
	LastSensorValue float64 `json:"lastSensorValue"`
	Target          float64 `json:"target"`
}

// Evaluate computes the next output of the curve.
//
// A new target is only computed if the sensor value moved by at least hysteresis
// since the value the current target was computed from. The output then moves from
// previousOutput toward the target by at most rateLimit (<= 0 is unlimited).
func Evaluate(curve *Curve, state State, sensorValue float64, previousOutput float64, hysteresis float64, rateLimit float64) (float64, State) {
	if !state.Initialized || math.Abs(sensorValue-state.LastSensorValue) >= hysteresis {
		state.Target = util.RoundToStep(curve.Interpolate(sensorValue), curve.Resolution())
		state.LastSensorValue = sensorValue
		state.Initialized = true
	}

	var maxChange *float64
	if rateLimit > 0 {
		maxChange = &rateLimit
	}
	loop := control_loop.NewDirectControlLoop(maxChange)
	loop.SetOutput(previousOutput)
	return loop.Cycle(state.Target), state
}

// Evaluator keeps the state of consecutive evaluations of a single curve.
type Evaluator struct {
	curve      *Curve
	hysteresis float64
	rateLimit  float64

	state  State
	output float64
}

func NewEvaluator(curve *Curve, hysteresis float64, rateLimit float64) *Evaluator {
	return &Evaluator{
		curve:      curve,
		hysteresis: hysteresis,
		rateLimit:  rateLimit,
	}
}

// Reset forgets the last evaluated sensor value, the next call to Next
// always computes a fresh target starting from output.
func (e *Evaluator) Reset(output float64) {
	e.state = State{}
	e.output = output
}

func (e *Evaluator) Next(sensorValue float64) float64 {
	e.output, e.state = Evaluate(e.curve, e.state, sensorValue, e.output, e.hysteresis, e.rateLimit)
	return e.output
}

func (e *Evaluator) Output() float64 {
	return e.output
}

func (e *Evaluator) State() State {
	return e.state
}
