package configuration

import "time"

type PlatformConfig struct {
	CommandTimeout  time.Duration `json:"commandTimeout"`
	ThermalCacheTtl time.Duration `json:"thermalCacheTtl"`
	PowerCacheTtl   time.Duration `json:"powerCacheTtl"`

	FrameworkTool FrameworkToolConfig `json:"frameworkTool"`
	// LmSensors reads temperatures through libsensors instead of framework_tool
	LmSensors bool `json:"lmSensors"`

	Limits LimitsConfig `json:"limits"`
	// Cpufreq drives governor, EPP and frequency limits of the profiles
	Cpufreq CpufreqConfig `json:"cpufreq"`
}

type FrameworkToolConfig struct {
	Path string `json:"path"`
	// FanIndex restricts duty commands to a single fan, all fans are driven if nil
	FanIndex *int `json:"fanIndex,omitempty"`
}

// LimitsConfig selects the backend used for TDP and thermal limits, at most one may be set.
type LimitsConfig struct {
	RyzenAdj *RyzenAdjConfig `json:"ryzenAdj,omitempty"`
	Rapl     *RaplConfig     `json:"rapl,omitempty"`
}

type RyzenAdjConfig struct {
	Path string `json:"path"`
}

type RaplConfig struct {
	// Path of the powercap zone, e.g. /sys/class/powercap/intel-rapl:0
	Path string `json:"path"`
}

type CpufreqConfig struct {
	Enabled bool `json:"enabled"`
	// Path containing the cpuN directories, e.g. /sys/devices/system/cpu
	Path string `json:"path"`
}
