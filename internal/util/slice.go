package util

import (
	"sort"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
)

func Min(s []float64) float64 {
	if len(s) < 1 {
		return 0
	}
	result := s[0]
	for _, v := range s {
		if v < result {
			result = v
		}
	}
	return result
}

func Max(s []float64) float64 {
	if len(s) < 1 {
		return 0
	}
	result := s[0]
	for _, v := range s {
		if v > result {
			result = v
		}
	}
	return result
}

func SortedKeys[T constraints.Ordered, K any](input map[T]K) []T {
	result := maps.Keys(input)
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}
