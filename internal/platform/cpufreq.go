package platform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fwctl/fwctl/internal/util"
	"golang.org/x/exp/slices"
)

const (
	DefaultCpufreqPath = "/sys/devices/system/cpu"

	governorFile           = "cpufreq/scaling_governor"
	availableGovernorsFile = "cpufreq/scaling_available_governors"
	eppFile                = "cpufreq/energy_performance_preference"
	availableEppFile       = "cpufreq/energy_performance_available_preferences"
	minFreqFile            = "cpufreq/scaling_min_freq"
	maxFreqFile            = "cpufreq/scaling_max_freq"
	curFreqFile            = "cpufreq/scaling_cur_freq"
)

// DefaultEppPreferences is assumed if the driver does not list its preferences
var DefaultEppPreferences = []string{
	"default",
	"performance",
	"balance_performance",
	"balance_power",
	"power",
}

// Cpufreq drives the scaling governor, the energy performance preference (amd_pstate, intel_pstate)
// and the scaling frequency limits of every CPU through sysfs.
type Cpufreq struct {
	path string
}

func NewCpufreq(path string) *Cpufreq {
	if len(path) <= 0 {
		path = DefaultCpufreqPath
	}
	return &Cpufreq{path: path}
}

// cpus returns the directories of all CPUs which provide the given file, sorted by CPU number
func (c *Cpufreq) cpus(file string) ([]string, error) {
	entries, err := os.ReadDir(c.path)
	if err != nil {
		return nil, err
	}
	var numbers []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		number, err := strconv.Atoi(name[3:])
		if err != nil || number < 0 {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.path, name, file)); err != nil {
			continue
		}
		numbers = append(numbers, number)
	}
	if len(numbers) <= 0 {
		return nil, fmt.Errorf("no CPU in %s provides %s", c.path, file)
	}
	sort.Ints(numbers)

	result := make([]string, len(numbers))
	for i, number := range numbers {
		result[i] = filepath.Join(c.path, fmt.Sprintf("cpu%d", number))
	}
	return result, nil
}

func (c *Cpufreq) ReadCpuPolicy(ctx context.Context) (CpuPolicyState, error) {
	cpus, err := c.cpus(governorFile)
	if err != nil {
		return CpuPolicyState{}, readFailure("cpufreq", err)
	}
	first := cpus[0]

	state := CpuPolicyState{}
	if governor, err := util.ReadStringFromFile(filepath.Join(first, governorFile)); err == nil {
		state.Governor = &governor
	}
	if preference, err := util.ReadStringFromFile(filepath.Join(first, eppFile)); err == nil {
		state.EppPreference = &preference
	}
	state.FrequencyMhz = readMhz(filepath.Join(first, curFreqFile))
	state.MinFreqMhz = readMhz(filepath.Join(first, minFreqFile))
	state.MaxFreqMhz = readMhz(filepath.Join(first, maxFreqFile))
	return state, nil
}

// AvailableGovernors lists the governors offered by the driver of the first CPU
func (c *Cpufreq) AvailableGovernors() ([]string, error) {
	cpus, err := c.cpus(governorFile)
	if err != nil {
		return nil, err
	}
	content, err := util.ReadStringFromFile(filepath.Join(cpus[0], availableGovernorsFile))
	if err != nil {
		return nil, err
	}
	return ParseAvailableList(content), nil
}

// AvailableEppPreferences lists the preferences offered by the driver of the first CPU,
// falling back to DefaultEppPreferences
func (c *Cpufreq) AvailableEppPreferences() ([]string, error) {
	cpus, err := c.cpus(eppFile)
	if err != nil {
		return nil, err
	}
	content, err := util.ReadStringFromFile(filepath.Join(cpus[0], availableEppFile))
	if err != nil {
		return DefaultEppPreferences, nil
	}
	preferences := ParseAvailableList(content)
	if len(preferences) <= 0 {
		return DefaultEppPreferences, nil
	}
	return preferences, nil
}

func (c *Cpufreq) ApplyGovernor(ctx context.Context, governor string) error {
	cpus, err := c.cpus(governorFile)
	if err != nil {
		return writeFailure("governor", err)
	}
	for _, cpu := range cpus {
		if err := util.WriteStringToFile(governor, filepath.Join(cpu, governorFile)); err != nil {
			return writeFailure("governor", fmt.Errorf("%s: %w", filepath.Base(cpu), err))
		}
	}
	return nil
}

func (c *Cpufreq) ApplyEppPreference(ctx context.Context, preference string) error {
	available, err := c.AvailableEppPreferences()
	if err != nil {
		return writeFailure("epp", errors.Join(ErrUnsupported, err))
	}
	if !slices.Contains(available, preference) {
		return writeFailure("epp", fmt.Errorf("%w: preference '%s' is not one of %s", ErrUnsupported, preference, strings.Join(available, ", ")))
	}

	cpus, err := c.cpus(eppFile)
	if err != nil {
		return writeFailure("epp", err)
	}
	for _, cpu := range cpus {
		if err := util.WriteStringToFile(preference, filepath.Join(cpu, eppFile)); err != nil {
			return writeFailure("epp", fmt.Errorf("%s: %w", filepath.Base(cpu), err))
		}
	}
	return nil
}

func (c *Cpufreq) ApplyFrequencyLimits(ctx context.Context, minMhz float64, maxMhz float64) error {
	cpus, err := c.cpus(governorFile)
	if err != nil {
		return writeFailure("frequency limits", err)
	}
	minKhz := int(math.Round(minMhz * 1000))
	maxKhz := int(math.Round(maxMhz * 1000))
	for _, cpu := range cpus {
		if err := util.WriteIntToFile(minKhz, filepath.Join(cpu, minFreqFile)); err != nil {
			return writeFailure("frequency limits", fmt.Errorf("%s: %w", filepath.Base(cpu), err))
		}
		if err := util.WriteIntToFile(maxKhz, filepath.Join(cpu, maxFreqFile)); err != nil {
			return writeFailure("frequency limits", fmt.Errorf("%s: %w", filepath.Base(cpu), err))
		}
	}
	return nil
}

// ParseAvailableList splits a whitespace separated sysfs list
func ParseAvailableList(content string) []string {
	return strings.Fields(content)
}

func readMhz(path string) *float64 {
	khz, err := util.ReadIntFromFile(path)
	if err != nil {
		return nil
	}
	mhz := math.Round(float64(khz) / 1000)
	return &mhz
}
