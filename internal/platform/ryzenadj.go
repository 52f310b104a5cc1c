package platform

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fwctl/fwctl/internal/util"
)

// LimitsBackend reads and writes the power and thermal limits of the CPU/APU.
type LimitsBackend interface {
	ReadLimits(ctx context.Context) (Limits, error)
	ApplyTdp(ctx context.Context, watts float64) error
	ApplyThermalLimit(ctx context.Context, celsius float64) error
}

type Limits struct {
	TdpWatts      *float64 `json:"tdpWatts,omitempty"`
	ThermalLimitC *float64 `json:"thermalLimitC,omitempty"`
}

// RyzenAdj controls AMD APU limits through the ryzenadj CLI.
type RyzenAdj struct {
	path string
	run  CommandRunner
}

func NewRyzenAdj(path string, timeout time.Duration) *RyzenAdj {
	return NewRyzenAdjWithRunner(path, func(ctx context.Context, executable string, args []string) (string, error) {
		return util.SafeCmdExecution(ctx, executable, args, timeout)
	})
}

func NewRyzenAdjWithRunner(path string, runner CommandRunner) *RyzenAdj {
	return &RyzenAdj{path: path, run: runner}
}

func (r *RyzenAdj) execute(ctx context.Context, args ...string) (string, error) {
	// the info table is needed on some firmwares for the limit commands to take effect
	return r.run(ctx, r.path, append(args, "--dump-table"))
}

func (r *RyzenAdj) ReadLimits(ctx context.Context) (Limits, error) {
	out, err := r.execute(ctx, "--info")
	if err != nil {
		return Limits{}, readFailure("ryzenadj --info", err)
	}
	limits := ParseRyzenAdjInfo(out)
	if limits.TdpWatts == nil && limits.ThermalLimitC == nil {
		return Limits{}, readFailure("ryzenadj --info", errors.New("no limits in output"))
	}
	return limits, nil
}

func (r *RyzenAdj) ApplyTdp(ctx context.Context, watts float64) error {
	mw := strconv.Itoa(int(math.Round(watts * 1000)))
	if _, err := r.execute(ctx, "--stapm-limit", mw, "--fast-limit", mw, "--slow-limit", mw); err != nil {
		return writeFailure("ryzenadj --stapm-limit", err)
	}
	return nil
}

func (r *RyzenAdj) ApplyThermalLimit(ctx context.Context, celsius float64) error {
	if _, err := r.execute(ctx, "--tctl-temp", strconv.Itoa(int(math.Round(celsius)))); err != nil {
		return writeFailure("ryzenadj --tctl-temp", err)
	}
	return nil
}

// matches table rows like "| STAPM LIMIT         |    67.000 | stapm-limit        |"
var ryzenAdjRowPattern = regexp.MustCompile(`^\|\s*([^|]+?)\s*\|\s*([+-]?(?:\d+\.)?\d+)\s*\|\s*(?:[^|]*)\|\s*$`)

// ParseRyzenAdjInfo extracts the effective limits from "ryzenadj --info" output.
// The TDP is the lowest of the STAPM, fast and slow PPT limits.
func ParseRyzenAdjInfo(output string) Limits {
	limits := Limits{}
	var powerLimits []float64

	for _, line := range strings.Split(output, "\n") {
		l := strings.TrimSpace(line)
		if !strings.HasPrefix(l, "|") || strings.HasPrefix(l, "|-") {
			continue
		}
		match := ryzenAdjRowPattern.FindStringSubmatch(l)
		if match == nil {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(match[1]))
		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}

		if strings.Contains(name, "STAPM LIMIT") || strings.Contains(name, "PPT LIMIT FAST") || strings.Contains(name, "PPT LIMIT SLOW") {
			powerLimits = append(powerLimits, value)
		}
		if strings.Contains(name, "THM LIMIT CORE") || strings.Contains(name, "TCTL") {
			thermal := math.Round(value)
			limits.ThermalLimitC = &thermal
		}
	}

	if len(powerLimits) > 0 {
		tdp := math.Max(1, math.Round(util.Min(powerLimits)))
		limits.TdpWatts = &tdp
	}
	return limits
}
