package util

import "github.com/asecurityteam/rolling"

func CreateRollingWindow(size int) *rolling.PointPolicy {
	return rolling.NewPointPolicy(rolling.NewWindow(size))
}

// GetWindowMax returns the max value in the window
func GetWindowMax(window *rolling.PointPolicy) float64 {
	return window.Reduce(rolling.Max)
}

// GetWindowValues returns a copy of all values currently held by the window.
// Buckets that were never written contain 0, so callers that need to distinguish
// have to keep track of the number of appended values themselves.
func GetWindowValues(window *rolling.PointPolicy) []float64 {
	var values []float64
	window.Reduce(func(w rolling.Window) float64 {
		for _, bucket := range w {
			values = append(values, bucket...)
		}
		return 0
	})
	return values
}

// FillWindow completely fills the given window with the given value
func FillWindow(window *rolling.PointPolicy, size int, value float64) {
	for i := 0; i < size; i++ {
		window.Append(value)
	}
}
