package platform

import (
	"context"
	"time"

	"github.com/fwctl/fwctl/internal/ui"
)

type ThermalSource interface {
	ReadThermal(ctx context.Context) (ThermalReading, error)
}

// EmbeddedController is the set of operations provided by the laptop EC, see FrameworkTool.
type EmbeddedController interface {
	ThermalSource
	ReadPowerState(ctx context.Context) (PowerState, error)
	ApplyFanDuty(ctx context.Context, pct float64) error
	RestoreAutoFan(ctx context.Context) error
	ApplyChargeRate(ctx context.Context, cRate float64, socThresholdPct *float64) error
	ApplyChargeLimit(ctx context.Context, maxPct float64) error
}

var (
	_ Platform  = (*Composite)(nil)
	_ CpuPolicy = (*Composite)(nil)
)

// Composite combines the EC with an optional thermal source and an optional
// limits backend into a single Platform. Readings are cached for a short time.
type Composite struct {
	ec      EmbeddedController
	thermal ThermalSource
	limits  LimitsBackend
	cpu     CpuPolicy

	cache      *readCache
	thermalTtl time.Duration
	powerTtl   time.Duration
}

type CompositeOption func(c *Composite)

// WithThermalSource reads temperatures and fan speeds from source instead of the EC
func WithThermalSource(source ThermalSource) CompositeOption {
	return func(c *Composite) {
		c.thermal = source
	}
}

func WithLimitsBackend(backend LimitsBackend) CompositeOption {
	return func(c *Composite) {
		c.limits = backend
	}
}

// WithCpuPolicy drives governor, EPP and frequency limits through backend
func WithCpuPolicy(backend CpuPolicy) CompositeOption {
	return func(c *Composite) {
		c.cpu = backend
	}
}

func WithCacheTtl(thermal time.Duration, power time.Duration) CompositeOption {
	return func(c *Composite) {
		c.thermalTtl = thermal
		c.powerTtl = power
	}
}

func WithClock(now func() time.Time) CompositeOption {
	return func(c *Composite) {
		c.cache = newReadCache(now)
	}
}

func NewComposite(ec EmbeddedController, options ...CompositeOption) *Composite {
	c := &Composite{
		ec:         ec,
		thermal:    ec,
		cache:      newReadCache(time.Now),
		thermalTtl: 1 * time.Second,
		powerTtl:   2 * time.Second,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// HasLimitsBackend reports whether TDP and thermal limits can be applied at all
func (c *Composite) HasLimitsBackend() bool {
	return c.limits != nil
}

func (c *Composite) Invalidate() {
	c.cache.invalidate(cacheKeyThermal, cacheKeyPower)
}

func (c *Composite) InvalidatePower() {
	c.cache.invalidate(cacheKeyPower)
}

func (c *Composite) ReadThermal(ctx context.Context) (ThermalReading, error) {
	return cachedRead(c.cache, cacheKeyThermal, c.thermalTtl, func() (ThermalReading, error) {
		return c.thermal.ReadThermal(ctx)
	})
}

func (c *Composite) ReadPowerState(ctx context.Context) (PowerState, error) {
	return cachedRead(c.cache, cacheKeyPower, c.powerTtl, func() (PowerState, error) {
		state, err := c.ec.ReadPowerState(ctx)
		if err != nil {
			return PowerState{}, err
		}
		if c.limits == nil {
			return state, nil
		}
		limits, err := c.limits.ReadLimits(ctx)
		if err != nil {
			// battery and AC state are still useful without limits
			ui.Debug("Unable to read power limits: %v", err)
			return state, nil
		}
		state.TdpWatts = limits.TdpWatts
		state.ThermalLimitC = limits.ThermalLimitC
		return state, nil
	})
}

func (c *Composite) ApplyFanDuty(ctx context.Context, pct float64) error {
	defer c.cache.invalidate(cacheKeyThermal)
	return c.ec.ApplyFanDuty(ctx, pct)
}

func (c *Composite) RestoreAutoFan(ctx context.Context) error {
	defer c.cache.invalidate(cacheKeyThermal)
	return c.ec.RestoreAutoFan(ctx)
}

func (c *Composite) ApplyTdp(ctx context.Context, watts float64) error {
	if c.limits == nil {
		return writeFailure("tdp", ErrUnsupported)
	}
	defer c.cache.invalidate(cacheKeyPower)
	return c.limits.ApplyTdp(ctx, watts)
}

func (c *Composite) ApplyThermalLimit(ctx context.Context, celsius float64) error {
	if c.limits == nil {
		return writeFailure("thermal limit", ErrUnsupported)
	}
	defer c.cache.invalidate(cacheKeyPower)
	return c.limits.ApplyThermalLimit(ctx, celsius)
}

func (c *Composite) ApplyChargeRate(ctx context.Context, cRate float64, socThresholdPct *float64) error {
	defer c.cache.invalidate(cacheKeyPower)
	return c.ec.ApplyChargeRate(ctx, cRate, socThresholdPct)
}

func (c *Composite) ApplyChargeLimit(ctx context.Context, maxPct float64) error {
	defer c.cache.invalidate(cacheKeyPower)
	return c.ec.ApplyChargeLimit(ctx, maxPct)
}

func (c *Composite) ReadCpuPolicy(ctx context.Context) (CpuPolicyState, error) {
	if c.cpu == nil {
		return CpuPolicyState{}, readFailure("cpufreq", ErrUnsupported)
	}
	return c.cpu.ReadCpuPolicy(ctx)
}

func (c *Composite) ApplyGovernor(ctx context.Context, governor string) error {
	if c.cpu == nil {
		return writeFailure("governor", ErrUnsupported)
	}
	return c.cpu.ApplyGovernor(ctx, governor)
}

func (c *Composite) ApplyEppPreference(ctx context.Context, preference string) error {
	if c.cpu == nil {
		return writeFailure("epp", ErrUnsupported)
	}
	return c.cpu.ApplyEppPreference(ctx, preference)
}

func (c *Composite) ApplyFrequencyLimits(ctx context.Context, minMhz float64, maxMhz float64) error {
	if c.cpu == nil {
		return writeFailure("frequency limits", ErrUnsupported)
	}
	return c.cpu.ApplyFrequencyLimits(ctx, minMhz, maxMhz)
}
