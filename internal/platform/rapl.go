package platform

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fwctl/fwctl/internal/util"
)

const (
	DefaultRaplPath = "/sys/class/powercap/intel-rapl:0"

	raplLimitFile   = "constraint_0_power_limit_uw"
	raplEnabledFile = "enabled"
)

// Rapl controls the package power limit through the Linux powercap sysfs interface.
// Thermal limits are not exposed by RAPL.
type Rapl struct {
	path string
}

func NewRapl(path string) *Rapl {
	if len(path) <= 0 {
		path = DefaultRaplPath
	}
	return &Rapl{path: path}
}

func (r *Rapl) ReadLimits(ctx context.Context) (Limits, error) {
	microwatts, err := util.ReadIntFromFile(filepath.Join(r.path, raplLimitFile))
	if err != nil {
		return Limits{}, readFailure("rapl", err)
	}
	tdp := math.Round(float64(microwatts) / 1_000_000)
	return Limits{TdpWatts: &tdp}, nil
}

func (r *Rapl) ApplyTdp(ctx context.Context, watts float64) error {
	// some systems require enabling the constraint first
	enabledPath := filepath.Join(r.path, raplEnabledFile)
	if _, err := os.Stat(enabledPath); err == nil {
		_ = util.WriteIntToFile(1, enabledPath)
	}

	microwatts := int(math.Round(watts * 1_000_000))
	if err := util.WriteIntToFile(microwatts, filepath.Join(r.path, raplLimitFile)); err != nil {
		return writeFailure("rapl", fmt.Errorf("%w (writing RAPL limits may require intel_rapl.restrict_attr=N)", err))
	}
	return nil
}

func (r *Rapl) ApplyThermalLimit(ctx context.Context, celsius float64) error {
	return writeFailure("rapl", ErrUnsupported)
}
