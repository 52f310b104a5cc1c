package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
)

// PowerStatus is a point in time view of the power domain.
type PowerStatus struct {
	Mode    configuration.PowerMode    `json:"mode"`
	Source  *configuration.PowerSource `json:"source,omitempty"`
	Tdp     ChannelStatus              `json:"tdp"`
	Thermal ChannelStatus              `json:"thermal"`
	// Cpu is the last applied cpufreq policy
	Cpu *CpuPolicyTargets `json:"cpu,omitempty"`
}

// CpuPolicyTargets is the cpufreq scaling policy of a power mode, empty fields are left untouched.
type CpuPolicyTargets struct {
	Governor      string  `json:"governor,omitempty"`
	EppPreference string  `json:"eppPreference,omitempty"`
	MinFreqMhz    float64 `json:"minFreqMhz,omitempty"`
	MaxFreqMhz    float64 `json:"maxFreqMhz,omitempty"`
}

func (t CpuPolicyTargets) IsEmpty() bool {
	return t == CpuPolicyTargets{}
}

func (t CpuPolicyTargets) hasFrequencyLimits() bool {
	return t.MinFreqMhz > 0 && t.MaxFreqMhz > 0
}

// NewCpuPolicyTargets resolves the enabled cpufreq settings, frequency limits are only used as a pair
func NewCpuPolicyTargets(targets configuration.PowerTargets) CpuPolicyTargets {
	result := CpuPolicyTargets{}
	if governor, enabled := targets.Governor.Get(); enabled {
		result.Governor = governor
	}
	if preference, enabled := targets.EppPreference.Get(); enabled {
		result.EppPreference = preference
	}
	minFreq := enabledValue(targets.MinFreqMhz)
	maxFreq := enabledValue(targets.MaxFreqMhz)
	if minFreq != nil && maxFreq != nil && *minFreq > 0 && *maxFreq > 0 {
		result.MinFreqMhz = *minFreq
		result.MaxFreqMhz = *maxFreq
	}
	return result
}

// PowerController keeps the TDP and the thermal limit at their targets, using a ReapplyChannel each.
// The cpufreq policy is applied once whenever the targets change.
type PowerController struct {
	platform platform.Platform
	store    *store.Store
	selector *ProfileSelector
	now      func() time.Time

	tdp     *ReapplyChannel
	thermal *ReapplyChannel
	cpu     platform.CpuPolicy

	mu     sync.Mutex
	mode   configuration.PowerMode
	source *configuration.PowerSource

	cpuApplied CpuPolicyTargets
	cpuSynced  bool
}

func NewPowerController(p platform.Platform, s *store.Store, selector *ProfileSelector) *PowerController {
	reapply := s.Power().Reapply
	cpu, _ := p.(platform.CpuPolicy)
	return &PowerController{
		platform: p,
		store:    s,
		selector: selector,
		now:      time.Now,
		tdp:      NewReapplyChannel("tdp", reapply, p.ApplyTdp),
		thermal:  NewReapplyChannel("thermal limit", reapply, p.ApplyThermalLimit),
		cpu:      cpu,
	}
}

func (c *PowerController) Run(ctx context.Context) error {
	ui.Info("Starting power controller...")
	for {
		c.Tick(ctx)

		interval := c.store.Current().Settings.Power.Reapply.PollInterval
		if interval <= 0 {
			interval = DefaultTickInterval
		}
		select {
		case <-ctx.Done():
			ui.Info("Stopping power controller...")
			return nil
		case <-time.After(interval):
		}
	}
}

// targets resolves the power targets of the active mode, disabled mode and an unknown
// power source in profile mode yield no enabled target
func (c *PowerController) targets(settings configuration.PowerSettings) (configuration.PowerTargets, *configuration.PowerSource) {
	switch settings.Mode {
	case configuration.PowerModeManual:
		return settings.Manual, nil
	case configuration.PowerModeProfile:
		selection := c.selector.Current()
		if selection == nil {
			return configuration.PowerTargets{}, nil
		}
		source := selection.Source
		return selection.Profile.PowerTargets(), &source
	}
	return configuration.PowerTargets{}, nil
}

func (c *PowerController) Tick(ctx context.Context) {
	settings := c.store.Power()
	c.tdp.SetConfig(settings.Reapply)
	c.thermal.SetConfig(settings.Reapply)

	targets, source := c.targets(settings)
	c.mu.Lock()
	c.mode = settings.Mode
	c.source = source
	c.mu.Unlock()

	tdpTarget := enabledValue(targets.TdpWatts)
	thermalTarget := enabledValue(targets.ThermalLimitC)
	now := c.now()

	var state platform.PowerState
	var readErr error
	if tdpTarget != nil || thermalTarget != nil {
		// every poll must observe the hardware, a cached state would look stable
		state, readErr = platform.ReadPowerStateFresh(ctx, c.platform)
	}

	observed, err := observedValue("tdp", state.TdpWatts, readErr)
	logDecision(c.tdp, c.tdp.Tick(ctx, now, tdpTarget, observed, err), tdpTarget, "W")

	observed, err = observedValue("thermal limit", state.ThermalLimitC, readErr)
	logDecision(c.thermal, c.thermal.Tick(ctx, now, thermalTarget, observed, err), thermalTarget, "°C")

	c.syncCpuPolicy(ctx, NewCpuPolicyTargets(targets))
}

// syncCpuPolicy applies desired if it differs from the last applied policy, failed writes are retried on the next tick
func (c *PowerController) syncCpuPolicy(ctx context.Context, desired CpuPolicyTargets) {
	c.mu.Lock()
	synced := c.cpuSynced && c.cpuApplied == desired
	c.mu.Unlock()
	if synced {
		return
	}

	if !desired.IsEmpty() {
		if c.cpu == nil {
			ui.Debug("Power: cpufreq policy is not supported by the platform")
		} else if err := ApplyCpuPolicy(ctx, c.cpu, desired); err != nil {
			ui.Warning("Power: unable to apply cpufreq policy: %v", err)
			return
		}
	}

	c.mu.Lock()
	c.cpuApplied = desired
	c.cpuSynced = true
	c.mu.Unlock()
}

// ApplyCpuPolicy applies governor, EPP and frequency limits in this order.
// Settings the platform does not support are skipped.
func ApplyCpuPolicy(ctx context.Context, cpu platform.CpuPolicy, targets CpuPolicyTargets) error {
	step := func(name string, value string, err error) error {
		switch {
		case err == nil:
			ui.Info("Power: applied %s %s", name, value)
		case errors.Is(err, platform.ErrUnsupported):
			ui.Debug("Power: skipping %s: %v", name, err)
		default:
			return err
		}
		return nil
	}

	// the governor decides which EPP preferences are accepted
	if len(targets.Governor) > 0 {
		if err := step("governor", targets.Governor, cpu.ApplyGovernor(ctx, targets.Governor)); err != nil {
			return err
		}
	}
	if len(targets.EppPreference) > 0 {
		if err := step("epp preference", targets.EppPreference, cpu.ApplyEppPreference(ctx, targets.EppPreference)); err != nil {
			return err
		}
	}
	if targets.hasFrequencyLimits() {
		limits := fmt.Sprintf("%v-%v MHz", targets.MinFreqMhz, targets.MaxFreqMhz)
		if err := step("frequency limits", limits, cpu.ApplyFrequencyLimits(ctx, targets.MinFreqMhz, targets.MaxFreqMhz)); err != nil {
			return err
		}
	}
	return nil
}

func (c *PowerController) Status() PowerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := PowerStatus{
		Mode:    c.mode,
		Tdp:     c.tdp.Status(),
		Thermal: c.thermal.Status(),
	}
	if c.source != nil {
		source := *c.source
		status.Source = &source
	}
	if c.cpuSynced && !c.cpuApplied.IsEmpty() {
		applied := c.cpuApplied
		status.Cpu = &applied
	}
	return status
}

func logDecision(channel *ReapplyChannel, decision Decision, target *float64, unit string) {
	switch {
	case decision.Commanded:
		ui.Info("Power: applied %s %v%s", channel.Name(), *target, unit)
	case decision.Err == nil:
		return
	case errors.Is(decision.Err, platform.ErrUnsupported):
		ui.Debug("Power: %v", decision.Err)
	case decision.Phase == PhaseReapplying:
		ui.Warning("Power: unable to apply %s: %v", channel.Name(), decision.Err)
	default:
		ui.Debug("Power: unable to observe %s: %v", channel.Name(), decision.Err)
	}
}

func enabledValue(setting configuration.Setting[float64]) *float64 {
	value, enabled := setting.Get()
	if !enabled {
		return nil
	}
	return &value
}
