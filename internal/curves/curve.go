package curves

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/util"
)

var ErrCurveFull = errors.New("no free input left in curve domain")

type Point struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Domain declares the value ranges of a curve. The corners
// (MinInput, MinOutput) and (MaxInput, MaxOutput) are the implicit anchors.
type Domain struct {
	MinInput  float64 `json:"minInput"`
	MaxInput  float64 `json:"maxInput"`
	MinOutput float64 `json:"minOutput"`
	MaxOutput float64 `json:"maxOutput"`
}

// FanDomain maps a temperature in °C to a fan duty in %
var FanDomain = Domain{
	MinInput:  configuration.CurveDomainMin,
	MaxInput:  configuration.CurveDomainMax,
	MinOutput: 0,
	MaxOutput: 100,
}

// Curve is an ordered set of points with unique inputs.
type Curve struct {
	domain     Domain
	resolution float64
	// user defined points, normalized, without anchors
	points []Point
}

// NewCurve normalizes the given points into a curve: values are clamped to the domain,
// inputs are rounded to resolution and colliding inputs are nudged apart.
func NewCurve(points []Point, domain Domain, resolution float64) (*Curve, error) {
	if len(points) <= 0 {
		return nil, fmt.Errorf("%w: curve has no points", configuration.ErrConfigurationRejected)
	}
	if resolution <= 0 {
		resolution = configuration.CurveResolution
	}

	c := &Curve{
		domain:     domain,
		resolution: resolution,
	}

	normalized := make([]Point, 0, len(points))
	for _, p := range points {
		if !util.IsFinite(p.Input) || !util.IsFinite(p.Output) {
			return nil, fmt.Errorf("%w: curve point (%v, %v) is not a finite number", configuration.ErrConfigurationRejected, p.Input, p.Output)
		}
		normalized = append(normalized, c.clamp(p))
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Input < normalized[j].Input
	})

	resolved, err := c.resolveCollisions(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", configuration.ErrConfigurationRejected, err)
	}
	c.points = resolved
	return c, nil
}

// NewFanCurve creates a temperature to duty curve from its configuration
func NewFanCurve(points configuration.CurvePoints) (*Curve, error) {
	converted := make([]Point, 0, len(points))
	for _, p := range points {
		converted = append(converted, Point{Input: p.Input, Output: p.Output})
	}
	return NewCurve(converted, FanDomain, configuration.CurveResolution)
}

func (c *Curve) Domain() Domain {
	return c.domain
}

func (c *Curve) Resolution() float64 {
	return c.resolution
}

// UserPoints returns a copy of the normalized, user defined points
func (c *Curve) UserPoints() []Point {
	result := make([]Point, len(c.points))
	copy(result, c.points)
	return result
}

// Points returns all points of the curve, including the implicit anchors,
// unless a user point already occupies the anchor input.
func (c *Curve) Points() []Point {
	result := make([]Point, 0, len(c.points)+2)
	if len(c.points) <= 0 || c.points[0].Input > c.domain.MinInput {
		result = append(result, Point{Input: c.domain.MinInput, Output: c.domain.MinOutput})
	}
	result = append(result, c.points...)
	if len(c.points) <= 0 || c.points[len(c.points)-1].Input < c.domain.MaxInput {
		result = append(result, Point{Input: c.domain.MaxInput, Output: c.domain.MaxOutput})
	}
	return result
}

// Insert adds a point at its (clamped) input. A point already occupying that
// input is nudged by the resolution, upwards if possible, downwards otherwise.
func (c *Curve) Insert(p Point) error {
	if !util.IsFinite(p.Input) || !util.IsFinite(p.Output) {
		return fmt.Errorf("%w: curve point (%v, %v) is not a finite number", configuration.ErrConfigurationRejected, p.Input, p.Output)
	}
	p = c.clamp(p)

	var lower, upper []Point
	var colliding *Point
	for i := range c.points {
		existing := c.points[i]
		switch {
		case existing.Input < p.Input:
			lower = append(lower, existing)
		case existing.Input > p.Input:
			upper = append(upper, existing)
		default:
			colliding = &existing
		}
	}

	if colliding != nil {
		moved := *colliding
		moved.Input = p.Input + c.resolution
		if nudged, ok := c.cascadeUp(append([]Point{moved}, upper...)); ok {
			upper = nudged
		} else {
			moved.Input = p.Input - c.resolution
			nudged, ok := c.cascadeDown(append(lower, moved))
			if !ok {
				return ErrCurveFull
			}
			lower = nudged
		}
	}

	result := make([]Point, 0, len(lower)+len(upper)+1)
	result = append(result, lower...)
	result = append(result, p)
	result = append(result, upper...)
	c.points = result
	return nil
}

// Interpolate returns the piecewise linear value of the curve at x.
// x is clamped to the input domain.
func (c *Curve) Interpolate(x float64) float64 {
	points := c.Points()
	x = util.Coerce(x, c.domain.MinInput, c.domain.MaxInput)

	if x <= points[0].Input {
		return points[0].Output
	}
	for i := 0; i < len(points)-1; i++ {
		current := points[i]
		next := points[i+1]
		if x > next.Input {
			continue
		}
		ratio := util.Ratio(x, current.Input, next.Input)
		return current.Output + ratio*(next.Output-current.Output)
	}
	return points[len(points)-1].Output
}

func (c *Curve) clamp(p Point) Point {
	input := util.RoundToStep(p.Input, c.resolution)
	return Point{
		Input:  util.Coerce(input, c.domain.MinInput, c.domain.MaxInput),
		Output: util.Coerce(p.Output, c.domain.MinOutput, c.domain.MaxOutput),
	}
}

// resolveCollisions expects points sorted by input
func (c *Curve) resolveCollisions(points []Point) ([]Point, error) {
	if nudged, ok := c.cascadeUp(points); ok {
		return nudged, nil
	}
	// ran into the upper bound, push everything back down from there
	nudged, _ := c.cascadeUp(points)
	nudged[len(nudged)-1].Input = c.domain.MaxInput
	if result, ok := c.cascadeDown(nudged); ok {
		return result, nil
	}
	return nil, ErrCurveFull
}

// cascadeUp shifts each point so its input is at least resolution above its predecessor.
// Returns false if a point would leave the domain.
func (c *Curve) cascadeUp(points []Point) ([]Point, bool) {
	result := make([]Point, len(points))
	copy(result, points)
	for i := 1; i < len(result); i++ {
		if result[i].Input < result[i-1].Input+c.resolution {
			result[i].Input = result[i-1].Input + c.resolution
		}
	}
	ok := len(result) <= 0 || result[len(result)-1].Input <= c.domain.MaxInput
	return result, ok
}

// cascadeDown shifts each point so its input is at least resolution below its successor.
// Returns false if a point would leave the domain.
func (c *Curve) cascadeDown(points []Point) ([]Point, bool) {
	result := make([]Point, len(points))
	copy(result, points)
	for i := len(result) - 2; i >= 0; i-- {
		if result[i].Input > result[i+1].Input-c.resolution {
			result[i].Input = result[i+1].Input - c.resolution
		}
	}
	ok := len(result) <= 0 || result[0].Input >= c.domain.MinInput
	return result, ok
}
