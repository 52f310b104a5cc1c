package configuration

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// curvePointsHookFunc returns a mapstructure decode hook that accepts curve points in
// one of the following formats:
//  1. a list of [input, output] pairs
//  2. a list of {input: x, output: y} objects
//  3. a map of input: output
func curvePointsHookFunc() mapstructure.DecodeHookFuncType {
	curvePointsType := reflect.TypeOf(CurvePoints{})

	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != curvePointsType {
			return data, nil
		}

		switch v := data.(type) {
		case []interface{}:
			return parseCurvePointList(v)
		case map[string]interface{}:
			return parseCurvePointMap(v)
		case map[interface{}]interface{}:
			converted := make(map[string]interface{}, len(v))
			for key, value := range v {
				converted[fmt.Sprintf("%v", key)] = value
			}
			return parseCurvePointMap(converted)
		case [][]float64:
			points := make(CurvePoints, 0, len(v))
			for _, pair := range v {
				if len(pair) != 2 {
					return nil, fmt.Errorf("curve point must have exactly 2 values, got %d", len(pair))
				}
				points = append(points, CurvePoint{Input: pair[0], Output: pair[1]})
			}
			return points, nil
		}

		return data, nil
	}
}

func parseCurvePointList(list []interface{}) (CurvePoints, error) {
	points := make(CurvePoints, 0, len(list))
	for idx, entry := range list {
		switch e := entry.(type) {
		case []interface{}:
			if len(e) != 2 {
				return nil, fmt.Errorf("curve point %d must have exactly 2 values, got %d", idx, len(e))
			}
			input, err := anyToFloat(e[0])
			if err != nil {
				return nil, fmt.Errorf("curve point %d: invalid input: %w", idx, err)
			}
			output, err := anyToFloat(e[1])
			if err != nil {
				return nil, fmt.Errorf("curve point %d: invalid output: %w", idx, err)
			}
			points = append(points, CurvePoint{Input: input, Output: output})
		case map[string]interface{}:
			input, err := anyToFloat(e["input"])
			if err != nil {
				return nil, fmt.Errorf("curve point %d: invalid input: %w", idx, err)
			}
			output, err := anyToFloat(e["output"])
			if err != nil {
				return nil, fmt.Errorf("curve point %d: invalid output: %w", idx, err)
			}
			points = append(points, CurvePoint{Input: input, Output: output})
		case CurvePoint:
			points = append(points, e)
		default:
			return nil, fmt.Errorf("curve point %d: unsupported type %T", idx, entry)
		}
	}
	return points, nil
}

func parseCurvePointMap(m map[string]interface{}) (CurvePoints, error) {
	points := make(CurvePoints, 0, len(m))
	for key, value := range m {
		input, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid curve point input %q: %w", key, err)
		}
		output, err := anyToFloat(value)
		if err != nil {
			return nil, fmt.Errorf("invalid curve point output for %q: %w", key, err)
		}
		points = append(points, CurvePoint{Input: input, Output: output})
	}
	return points, nil
}

// anyToFloat converts numeric and string values to float64.
func anyToFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number: %w", val, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}
