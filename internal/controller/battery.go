package controller

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/fwctl/fwctl/internal/util"
)

const (
	ChargeRateStep = 0.05
	MinChargeRateC = 0.0
	MaxChargeRateC = 1.0

	MinChargeLimitPct = 25.0
	MaxChargeLimitPct = 100.0
)

// SnapChargeRate rounds the charge rate to the supported step and range
func SnapChargeRate(cRate float64) float64 {
	snapped := math.Round(cRate/ChargeRateStep) * ChargeRateStep
	// avoid values like 0.30000000000000004
	snapped = math.Round(snapped*100) / 100
	return util.Coerce(snapped, MinChargeRateC, MaxChargeRateC)
}

func ClampChargeLimit(pct float64) float64 {
	return util.Coerce(math.Round(pct), MinChargeLimitPct, MaxChargeLimitPct)
}

type chargeRateCommand struct {
	cRate        float64
	socThreshold *float64
}

func (c chargeRateCommand) equals(other chargeRateCommand) bool {
	if c.cRate != other.cRate {
		return false
	}
	if c.socThreshold == nil || other.socThreshold == nil {
		return c.socThreshold == nil && other.socThreshold == nil
	}
	return *c.socThreshold == *other.socThreshold
}

// BatteryStatus is a point in time view of the battery domain.
type BatteryStatus struct {
	Mode             configuration.BatteryMode  `json:"mode"`
	Source           *configuration.PowerSource `json:"source,omitempty"`
	ChargeRateC      *float64                   `json:"chargeRateC,omitempty"`
	SocThresholdPct  *float64                   `json:"socThresholdPct,omitempty"`
	ChargeLimitPct   *float64                   `json:"chargeLimitPct,omitempty"`
	LastRateCommand  *time.Time                 `json:"lastRateCommand,omitempty"`
	LastLimitCommand *time.Time                 `json:"lastLimitCommand,omitempty"`
}

// BatteryController commands charge rate and charge limit when they change
// and re-asserts them periodically, since the EC forgets them e.g. on suspend.
type BatteryController struct {
	platform platform.Platform
	store    *store.Store
	selector *ProfileSelector
	now      func() time.Time

	mu            sync.Mutex
	mode          configuration.BatteryMode
	source        *configuration.PowerSource
	lastRate      *chargeRateCommand
	lastRateTime  time.Time
	lastLimit     *float64
	lastLimitTime time.Time
}

func NewBatteryController(p platform.Platform, s *store.Store, selector *ProfileSelector) *BatteryController {
	return &BatteryController{
		platform: p,
		store:    s,
		selector: selector,
		now:      time.Now,
	}
}

func (c *BatteryController) Run(ctx context.Context) error {
	ui.Info("Starting battery controller...")
	for {
		c.Tick(ctx)

		interval := c.store.Current().Settings.Battery.PollInterval
		if interval <= 0 {
			interval = DefaultTickInterval
		}
		select {
		case <-ctx.Done():
			ui.Info("Stopping battery controller...")
			return nil
		case <-time.After(interval):
		}
	}
}

func (c *BatteryController) targets(settings configuration.BatterySettings) (configuration.BatteryTargets, *configuration.PowerSource) {
	switch settings.Mode {
	case configuration.BatteryModeManual:
		return settings.Manual, nil
	case configuration.BatteryModeProfile:
		selection := c.selector.Current()
		if selection == nil {
			return configuration.BatteryTargets{}, nil
		}
		source := selection.Source
		return selection.Profile.BatteryTargets(), &source
	}
	return configuration.BatteryTargets{}, nil
}

func (c *BatteryController) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	settings := c.store.Battery()
	targets, source := c.targets(settings)
	c.mode = settings.Mode
	c.source = source
	now := c.now()

	if rate := enabledValue(targets.ChargeRateC); rate != nil {
		command := chargeRateCommand{cRate: SnapChargeRate(*rate), socThreshold: copyValue(targets.SocThresholdPct)}
		if c.isDue(c.lastRate == nil || !c.lastRate.equals(command), c.lastRateTime, now, settings.ReapplyInterval) {
			if err := c.platform.ApplyChargeRate(ctx, command.cRate, command.socThreshold); err != nil {
				ui.Warning("Battery: unable to apply charge rate %vC: %v", command.cRate, err)
			} else {
				ui.Info("Battery: applied charge rate %vC", command.cRate)
				c.lastRate = &command
				c.lastRateTime = now
			}
		}
	} else {
		c.lastRate = nil
	}

	if limit := enabledValue(targets.ChargeLimitMaxPct); limit != nil {
		value := ClampChargeLimit(*limit)
		if c.isDue(c.lastLimit == nil || *c.lastLimit != value, c.lastLimitTime, now, settings.ReapplyInterval) {
			if err := c.platform.ApplyChargeLimit(ctx, value); err != nil {
				ui.Warning("Battery: unable to apply charge limit %v%%: %v", value, err)
			} else {
				ui.Info("Battery: applied charge limit %v%%", value)
				c.lastLimit = &value
				c.lastLimitTime = now
			}
		}
	} else {
		c.lastLimit = nil
	}
}

func (c *BatteryController) isDue(changed bool, lastCommand time.Time, now time.Time, reapplyInterval time.Duration) bool {
	if changed {
		return true
	}
	return reapplyInterval > 0 && now.Sub(lastCommand) >= reapplyInterval
}

func (c *BatteryController) Status() BatteryStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := BatteryStatus{Mode: c.mode}
	if c.source != nil {
		source := *c.source
		status.Source = &source
	}
	if c.lastRate != nil {
		rate := c.lastRate.cRate
		status.ChargeRateC = &rate
		status.SocThresholdPct = copyValue(c.lastRate.socThreshold)
		lastRateTime := c.lastRateTime
		status.LastRateCommand = &lastRateTime
	}
	if c.lastLimit != nil {
		status.ChargeLimitPct = copyValue(c.lastLimit)
		lastLimitTime := c.lastLimitTime
		status.LastLimitCommand = &lastLimitTime
	}
	return status
}
