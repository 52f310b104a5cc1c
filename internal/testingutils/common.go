package testingutils

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fwctl/fwctl/internal/platform"
	"golang.org/x/exp/slices"
)

var (
	// LinearFan maps fan duty (%) to RPM
	LinearFan = map[int]float64{
		0:   0,
		100: 5000,
	}

	// StallingFan does not spin below 20% duty
	StallingFan = map[int]float64{
		0:   0,
		19:  0,
		20:  1200,
		100: 5000,
	}

	// CappedFan does not get faster above 80% duty
	CappedFan = map[int]float64{
		0:   0,
		80:  4000,
		100: 4000,
	}
)

// Call is a single recorded actuation
type Call struct {
	Method string
	Value  float64
	Extra  *float64
	Text   string
}

// FakePlatform is an in-memory platform.Platform. Fan RPM follows FanResponse for the last commanded duty,
// TDP and thermal limit commands are reflected in the observed state unless Sticky is false.
type FakePlatform struct {
	mu sync.Mutex

	temperatures map[string]float64
	FanResponse  map[int]float64
	duty         *float64

	acPresent *bool
	battery   *platform.BatteryInfo

	tdpWatts      *float64
	thermalLimitC *float64
	Sticky        bool

	// EppPreferences restricts the accepted EPP preferences, all are accepted if nil
	EppPreferences []string
	cpuPolicy      platform.CpuPolicyState

	ThermalErr error
	PowerErr   error
	WriteErr   error

	calls []Call
}

var (
	_ platform.Platform  = (*FakePlatform)(nil)
	_ platform.CpuPolicy = (*FakePlatform)(nil)
)

func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		temperatures: map[string]float64{},
		FanResponse:  LinearFan,
		Sticky:       true,
	}
}

func (f *FakePlatform) SetTemperature(sensor string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temperatures[sensor] = value
}

func (f *FakePlatform) SetAcPresent(present bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acPresent = &present
}

func (f *FakePlatform) SetBattery(battery platform.BatteryInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.battery = &battery
}

// SetObservedTdp simulates the firmware changing the TDP behind our back
func (f *FakePlatform) SetObservedTdp(watts float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tdpWatts = &watts
}

func (f *FakePlatform) SetObservedThermalLimit(celsius float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thermalLimitC = &celsius
}

func (f *FakePlatform) SetErrors(thermal error, power error, write error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ThermalErr = thermal
	f.PowerErr = power
	f.WriteErr = write
}

// Calls returns a copy of all recorded actuations
func (f *FakePlatform) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call{}, f.calls...)
}

// CallsOf returns the recorded actuations of the given method
func (f *FakePlatform) CallsOf(method string) []Call {
	result := []Call{}
	for _, call := range f.Calls() {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

func (f *FakePlatform) Duty() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.duty == nil {
		return 0, false
	}
	return *f.duty, true
}

func (f *FakePlatform) ReadThermal(ctx context.Context) (platform.ThermalReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ThermalErr != nil {
		return platform.ThermalReading{}, f.ThermalErr
	}
	reading := platform.ThermalReading{
		Temperatures: map[string]float64{},
		FanRpms:      []float64{},
	}
	for name, value := range f.temperatures {
		reading.Temperatures[name] = value
	}
	if f.duty != nil {
		reading.FanRpms = append(reading.FanRpms, interpolate(f.FanResponse, *f.duty))
	}
	return reading, nil
}

func (f *FakePlatform) ReadPowerState(ctx context.Context) (platform.PowerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PowerErr != nil {
		return platform.PowerState{}, f.PowerErr
	}
	state := platform.PowerState{
		TdpWatts:      copyPtr(f.tdpWatts),
		ThermalLimitC: copyPtr(f.thermalLimitC),
		AcPresent:     copyPtr(f.acPresent),
	}
	if f.battery != nil {
		battery := *f.battery
		state.Battery = &battery
	}
	return state, nil
}

func (f *FakePlatform) record(method string, value float64, extra *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Value: value, Extra: copyPtr(extra)})
	if f.WriteErr != nil {
		return f.WriteErr
	}
	switch method {
	case "ApplyFanDuty":
		f.duty = &value
	case "RestoreAutoFan":
		f.duty = nil
	case "ApplyTdp":
		if f.Sticky {
			f.tdpWatts = &value
		}
	case "ApplyThermalLimit":
		if f.Sticky {
			f.thermalLimitC = &value
		}
	case "ApplyFrequencyLimits":
		f.cpuPolicy.MinFreqMhz = &value
		f.cpuPolicy.MaxFreqMhz = copyPtr(extra)
	}
	return nil
}

func (f *FakePlatform) ApplyFanDuty(ctx context.Context, pct float64) error {
	return f.record("ApplyFanDuty", pct, nil)
}

func (f *FakePlatform) RestoreAutoFan(ctx context.Context) error {
	return f.record("RestoreAutoFan", 0, nil)
}

func (f *FakePlatform) ApplyTdp(ctx context.Context, watts float64) error {
	return f.record("ApplyTdp", watts, nil)
}

func (f *FakePlatform) ApplyThermalLimit(ctx context.Context, celsius float64) error {
	return f.record("ApplyThermalLimit", celsius, nil)
}

func (f *FakePlatform) ApplyChargeRate(ctx context.Context, cRate float64, socThresholdPct *float64) error {
	return f.record("ApplyChargeRate", cRate, socThresholdPct)
}

func (f *FakePlatform) ApplyChargeLimit(ctx context.Context, maxPct float64) error {
	return f.record("ApplyChargeLimit", maxPct, nil)
}

func (f *FakePlatform) ReadCpuPolicy(ctx context.Context) (platform.CpuPolicyState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PowerErr != nil {
		return platform.CpuPolicyState{}, f.PowerErr
	}
	return platform.CpuPolicyState{
		Governor:      copyPtr(f.cpuPolicy.Governor),
		EppPreference: copyPtr(f.cpuPolicy.EppPreference),
		MinFreqMhz:    copyPtr(f.cpuPolicy.MinFreqMhz),
		MaxFreqMhz:    copyPtr(f.cpuPolicy.MaxFreqMhz),
	}, nil
}

func (f *FakePlatform) ApplyGovernor(ctx context.Context, governor string) error {
	return f.recordText("ApplyGovernor", governor)
}

func (f *FakePlatform) ApplyEppPreference(ctx context.Context, preference string) error {
	f.mu.Lock()
	supported := f.EppPreferences == nil || slices.Contains(f.EppPreferences, preference)
	f.mu.Unlock()
	if !supported {
		return fmt.Errorf("epp: %w: %w", platform.ErrTransientWrite, platform.ErrUnsupported)
	}
	return f.recordText("ApplyEppPreference", preference)
}

func (f *FakePlatform) ApplyFrequencyLimits(ctx context.Context, minMhz float64, maxMhz float64) error {
	return f.record("ApplyFrequencyLimits", minMhz, &maxMhz)
}

func (f *FakePlatform) recordText(method string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Text: text})
	if f.WriteErr != nil {
		return f.WriteErr
	}
	switch method {
	case "ApplyGovernor":
		f.cpuPolicy.Governor = &text
	case "ApplyEppPreference":
		f.cpuPolicy.EppPreference = &text
	}
	return nil
}

// interpolate linearly between the points of a duty -> rpm map
func interpolate(response map[int]float64, duty float64) float64 {
	keys := make([]int, 0, len(response))
	for key := range response {
		keys = append(keys, key)
	}
	if len(keys) <= 0 {
		return 0
	}
	sort.Ints(keys)
	if duty <= float64(keys[0]) {
		return response[keys[0]]
	}
	for i := 1; i < len(keys); i++ {
		lower, upper := keys[i-1], keys[i]
		if duty <= float64(upper) {
			ratio := (duty - float64(lower)) / float64(upper-lower)
			return response[lower] + ratio*(response[upper]-response[lower])
		}
	}
	return response[keys[len(keys)-1]]
}

func copyPtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
