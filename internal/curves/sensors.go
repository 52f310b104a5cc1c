package curves

// DrivingValue reduces the given temperatures to a single value by taking the
// maximum across the selected sensors. If none of them is available the fallback
// sensor is used instead. Returns the name of the sensor that won.
func DrivingValue(temperatures map[string]float64, sensors []string, fallback string) (value float64, sensor string, ok bool) {
	for _, name := range sensors {
		temp, exists := temperatures[name]
		if !exists {
			continue
		}
		if !ok || temp > value {
			value = temp
			sensor = name
			ok = true
		}
	}
	if ok {
		return value, sensor, true
	}

	if temp, exists := temperatures[fallback]; exists {
		return temp, fallback, true
	}
	return 0, "", false
}
