package calibration

import (
	"errors"
	"math"
	"sort"

	"github.com/fwctl/fwctl/internal/configuration"
	"gonum.org/v1/gonum/interp"
)

var ErrEmptyTable = errors.New("calibration table is empty")

const bisectionIterations = 60

type predictor interface {
	Fit(xs []float64, ys []float64) error
	Predict(x float64) float64
}

// Table maps fan duty (%) to the measured response (RPM).
// Response and Duty use a natural cubic spline through the measured points, they are meant for display only.
type Table struct {
	points []configuration.CalibrationPoint
	spline predictor
}

// NewTable sorts points by duty and fits the spline.
// Multiple points with the same duty are averaged.
func NewTable(points []configuration.CalibrationPoint) (*Table, error) {
	if len(points) <= 0 {
		return nil, ErrEmptyTable
	}

	sorted := append([]configuration.CalibrationPoint{}, points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Duty < sorted[j].Duty
	})

	var merged []configuration.CalibrationPoint
	count := 0
	for _, p := range sorted {
		n := len(merged)
		if n > 0 && merged[n-1].Duty == p.Duty {
			count++
			merged[n-1].Response += (p.Response - merged[n-1].Response) / float64(count)
			continue
		}
		merged = append(merged, p)
		count = 1
	}

	t := &Table{points: merged}
	if len(merged) < 2 {
		return t, nil
	}

	xs := make([]float64, len(merged))
	ys := make([]float64, len(merged))
	for i, p := range merged {
		xs[i] = p.Duty
		ys[i] = p.Response
	}

	if len(merged) == 2 {
		t.spline = &interp.PiecewiseLinear{}
	} else {
		t.spline = &interp.NaturalCubic{}
	}
	if err := t.spline.Fit(xs, ys); err != nil {
		return nil, err
	}
	return t, nil
}

// Points returns a copy of the measured points, sorted by duty
func (t *Table) Points() []configuration.CalibrationPoint {
	return append([]configuration.CalibrationPoint{}, t.points...)
}

func (t *Table) minDuty() float64 {
	return t.points[0].Duty
}

func (t *Table) maxDuty() float64 {
	return t.points[len(t.points)-1].Duty
}

// IsMonotonic reports whether the response never decreases with increasing duty
func (t *Table) IsMonotonic() bool {
	for i := 1; i < len(t.points); i++ {
		if t.points[i].Response < t.points[i-1].Response {
			return false
		}
	}
	return true
}

// Response returns the estimated response at the given duty, clamped to the measured duty range
func (t *Table) Response(duty float64) float64 {
	if t.spline == nil {
		return t.points[0].Response
	}
	duty = math.Max(t.minDuty(), math.Min(t.maxDuty(), duty))
	return t.spline.Predict(duty)
}

// Duty returns the duty estimated to produce the given response.
// The first segment (by ascending duty) whose measured responses bracket the value is used,
// ok is false if no segment does.
func (t *Table) Duty(response float64) (duty float64, ok bool) {
	if len(t.points) == 1 {
		return t.points[0].Duty, t.points[0].Response == response
	}

	for i := 1; i < len(t.points); i++ {
		lower, upper := t.points[i-1], t.points[i]
		if response == lower.Response {
			return lower.Duty, true
		}
		if response == upper.Response {
			return upper.Duty, true
		}
		if (response-lower.Response)*(response-upper.Response) < 0 {
			return t.bisect(lower.Duty, upper.Duty, response), true
		}
	}
	return 0, false
}

func (t *Table) bisect(lo float64, hi float64, response float64) float64 {
	fLo := t.spline.Predict(lo) - response
	for i := 0; i < bisectionIterations; i++ {
		mid := (lo + hi) / 2
		fMid := t.spline.Predict(mid) - response
		if fMid == 0 {
			return mid
		}
		if (fLo < 0) == (fMid < 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
