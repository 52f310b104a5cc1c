package platform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fwctl/fwctl/internal/util"
)

// FrameworkTool drives the embedded controller through the framework_tool CLI.
type FrameworkTool struct {
	path     string
	fanIndex *int
	run      CommandRunner
}

func NewFrameworkTool(path string, fanIndex *int, timeout time.Duration) *FrameworkTool {
	return NewFrameworkToolWithRunner(path, fanIndex, func(ctx context.Context, executable string, args []string) (string, error) {
		return util.SafeCmdExecution(ctx, executable, args, timeout)
	})
}

func NewFrameworkToolWithRunner(path string, fanIndex *int, runner CommandRunner) *FrameworkTool {
	return &FrameworkTool{
		path:     path,
		fanIndex: fanIndex,
		run:      runner,
	}
}

func (f *FrameworkTool) ReadThermal(ctx context.Context) (ThermalReading, error) {
	out, err := f.run(ctx, f.path, []string{"--thermal"})
	if err != nil {
		return ThermalReading{}, readFailure("framework_tool --thermal", err)
	}
	reading := ParseThermal(out)
	if len(reading.Temperatures) <= 0 {
		return ThermalReading{}, readFailure("framework_tool --thermal", errors.New("no temperatures in output"))
	}
	return reading, nil
}

// ReadPowerState reads AC presence and battery state, power limits are not known to the EC.
func (f *FrameworkTool) ReadPowerState(ctx context.Context) (PowerState, error) {
	out, err := f.run(ctx, f.path, []string{"--power", "-vv"})
	if err != nil {
		return PowerState{}, readFailure("framework_tool --power", err)
	}
	return ParsePower(out), nil
}

func (f *FrameworkTool) ApplyFanDuty(ctx context.Context, pct float64) error {
	duty := strconv.Itoa(int(util.Coerce(pct, 0, 100) + 0.5))
	args := []string{"--fansetduty"}
	if f.fanIndex != nil {
		args = append(args, strconv.Itoa(*f.fanIndex))
	}
	args = append(args, duty)
	if _, err := f.run(ctx, f.path, args); err != nil {
		return writeFailure("framework_tool --fansetduty", err)
	}
	return nil
}

func (f *FrameworkTool) RestoreAutoFan(ctx context.Context) error {
	if _, err := f.run(ctx, f.path, []string{"--autofanctrl"}); err != nil {
		return writeFailure("framework_tool --autofanctrl", err)
	}
	return nil
}

func (f *FrameworkTool) ApplyChargeRate(ctx context.Context, cRate float64, socThresholdPct *float64) error {
	args := []string{"--charge-rate-limit", fmt.Sprintf("%.3f", cRate)}
	if socThresholdPct != nil {
		args = append(args, strconv.Itoa(int(util.Coerce(*socThresholdPct, 0, 100))))
	}
	if _, err := f.run(ctx, f.path, args); err != nil {
		return writeFailure("framework_tool --charge-rate-limit", err)
	}
	return nil
}

func (f *FrameworkTool) ApplyChargeLimit(ctx context.Context, maxPct float64) error {
	args := []string{"--charge-limit", strconv.Itoa(int(util.Coerce(maxPct, 0, 100)))}
	if _, err := f.run(ctx, f.path, args); err != nil {
		return writeFailure("framework_tool --charge-limit", err)
	}
	return nil
}

// ParseThermal parses the output of "framework_tool --thermal".
// Temperatures look like "APU:   62 C", fan speeds like "Fan Speed:  3171 RPM".
func ParseThermal(output string) ThermalReading {
	reading := ThermalReading{
		Temperatures: map[string]float64{},
		FanRpms:      []float64{},
	}
	for _, line := range strings.Split(output, "\n") {
		l := strings.TrimSpace(line)

		if rest, found := valueAfter(l, "Fan Speed:"); found {
			if rpm, ok := firstNumber(rest, ""); ok {
				reading.FanRpms = append(reading.FanRpms, rpm)
			}
			continue
		}

		key, rest, found := strings.Cut(l, ":")
		if !found {
			continue
		}
		idx := strings.LastIndex(rest, "C")
		if idx < 0 {
			continue
		}
		fields := strings.Fields(rest[:idx])
		if len(fields) <= 0 {
			continue
		}
		value, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			continue
		}
		reading.Temperatures[strings.TrimSpace(key)] = float64(value)
	}
	return reading
}

// ParsePower parses the output of "framework_tool --power -vv".
func ParsePower(output string) PowerState {
	state := PowerState{}
	battery := BatteryInfo{}
	hasBattery := false

	for _, line := range strings.Split(output, "\n") {
		l := strings.TrimSpace(line)
		lower := strings.ToLower(l)

		if strings.HasPrefix(l, "AC is:") {
			present := strings.Contains(lower, "connected") && !strings.Contains(lower, "not connected")
			state.AcPresent = &present
		}
		if rest, ok := valueAfter(l, "Battery LFCC:"); ok {
			if v, ok := firstNumber(rest, ""); ok {
				battery.LastFullChargeCapMah = &v
				hasBattery = true
			}
		}
		if rest, ok := valueAfter(l, "Battery Capacity:"); ok {
			if v, ok := firstNumber(rest, ""); ok {
				battery.RemainingCapacityMah = &v
				hasBattery = true
			}
		}
		if rest, ok := valueAfter(l, "Charge level:"); ok {
			if v, ok := firstNumber(rest, "%"); ok {
				battery.ChargePct = &v
				hasBattery = true
			}
		}
		if rest, ok := valueAfter(l, "Present Voltage:"); ok {
			if v, ok := firstDecimal(rest); ok {
				mv := math.Round(v * 1000)
				battery.PresentVoltageMv = &mv
				hasBattery = true
			}
		}
		if rest, ok := valueAfter(l, "Charger Voltage:"); ok {
			if v, ok := firstNumberWithUnit(rest, "mV"); ok {
				battery.PresentVoltageMv = &v
				hasBattery = true
			}
		}
		if rest, ok := valueAfter(l, "Present Rate:"); ok {
			if v, ok := firstNumber(rest, ""); ok {
				battery.PresentRateMa = &v
				hasBattery = true
			}
		}
		if rest, ok := valueAfter(l, "Charger Current:"); ok {
			if v, ok := firstNumberWithUnit(rest, "mA"); ok {
				battery.PresentRateMa = &v
				hasBattery = true
			}
		}
		if strings.HasPrefix(l, "Cycle Count:") {
			if v, ok := firstNumber(strings.TrimPrefix(l, "Cycle Count:"), ""); ok {
				count := int(v)
				battery.CycleCount = &count
				hasBattery = true
			}
		}
		if strings.EqualFold(l, "Battery charging") {
			battery.Charging = true
			hasBattery = true
		}
		if strings.EqualFold(l, "Battery discharging") {
			battery.Discharging = true
			hasBattery = true
		}
	}

	if hasBattery {
		state.Battery = &battery
	}
	return state
}

func valueAfter(line string, label string) (string, bool) {
	idx := strings.Index(line, label)
	if idx < 0 {
		return "", false
	}
	return line[idx+len(label):], true
}

// firstNumber returns the first whitespace separated token consisting only of digits,
// after removing the given suffix.
func firstNumber(text string, suffix string) (float64, bool) {
	for _, token := range strings.Fields(text) {
		token = strings.TrimSuffix(token, suffix)
		if len(token) > 0 && strings.Trim(token, "0123456789") == "" {
			value, err := strconv.Atoi(token)
			if err == nil {
				return float64(value), true
			}
		}
	}
	return 0, false
}

func firstNumberWithUnit(text string, unit string) (float64, bool) {
	for _, token := range strings.Fields(text) {
		if !strings.HasSuffix(token, unit) {
			continue
		}
		if value, ok := firstNumber(token, unit); ok {
			return value, true
		}
	}
	return 0, false
}

func firstDecimal(text string) (float64, bool) {
	for _, token := range strings.Fields(text) {
		if len(token) > 0 && strings.Trim(token, "0123456789.") == "" {
			value, err := strconv.ParseFloat(token, 64)
			if err == nil {
				return value, true
			}
		}
	}
	return 0, false
}
