package control_loop

import (
	"github.com/fwctl/fwctl/internal/util"
)

// DirectControlLoop is a very simple control that directly applies the given
// target. It can also be used to gracefully approach the target by
// utilizing the "maxChangePerCycle" property.
type DirectControlLoop struct {
	// limits the maximum allowed change per cycle
	maxChangePerCycle *float64
	lastOutput        *float64
}

// NewDirectControlLoop creates a DirectControlLoop, which is a very simple control that directly applies the given
// target. It can also be used to gracefully approach the target by
// utilizing the "maxChangePerCycle" property.
func NewDirectControlLoop(
	// can be used to limit the maximum allowed change per cycle, nil means unlimited
	maxChangePerCycle *float64,
) *DirectControlLoop {
	return &DirectControlLoop{
		maxChangePerCycle: maxChangePerCycle,
	}
}

// SetOutput sets the value the next cycle starts from
func (l *DirectControlLoop) SetOutput(value float64) {
	l.lastOutput = &value
}

func (l *DirectControlLoop) Cycle(target float64) float64 {
	if l.lastOutput == nil {
		// nothing to approach from yet
		l.SetOutput(target)
		return target
	}

	output := StepToward(*l.lastOutput, target, l.maxChangePerCycle)
	l.lastOutput = &output
	return output
}

// StepToward moves current toward target by at most maxChange.
// The result never overshoots the target.
func StepToward(current float64, target float64, maxChange *float64) float64 {
	if maxChange == nil || *maxChange <= 0 {
		return target
	}
	err := target - current
	// we can be above or below the target value,
	// so we subtract or add at most the max change,
	// capped to having reached the target
	if err > 0 {
		return current + util.Coerce(*maxChange, 0, err)
	}
	return current + util.Coerce(-*maxChange, err, 0)
}
