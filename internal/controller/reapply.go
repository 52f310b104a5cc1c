package controller

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/platform"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseObserving  Phase = "observing"
	PhaseSettled    Phase = "settled"
	PhaseReapplying Phase = "reapplying"
)

// EffectiveActuationState is the private memory of a ReapplyChannel.
type EffectiveActuationState struct {
	LastCommanded   *float64   `json:"lastCommanded,omitempty"`
	LastObserved    *float64   `json:"lastObserved,omitempty"`
	LastCommandTime time.Time  `json:"lastCommandTime"`
	QuietSince      *time.Time `json:"quietSince,omitempty"`
}

// Decision is the outcome of a single ReapplyChannel tick.
type Decision struct {
	Phase     Phase
	Commanded bool
	Err       error
}

type ApplyFunc func(ctx context.Context, value float64) error

// ReapplyChannel keeps a single actuator at its target without fighting the firmware:
// a deviating value is only corrected once it has been stable for the quiet window
// and the cooldown since the last command has passed.
type ReapplyChannel struct {
	name  string
	apply ApplyFunc

	mu           sync.Mutex
	config       configuration.ReapplyConfig
	state        EffectiveActuationState
	phase        Phase
	target       *float64
	reapplyCount int
}

func NewReapplyChannel(name string, config configuration.ReapplyConfig, apply ApplyFunc) *ReapplyChannel {
	return &ReapplyChannel{
		name:   name,
		apply:  apply,
		config: config,
		phase:  PhaseIdle,
	}
}

func (c *ReapplyChannel) Name() string {
	return c.name
}

// SetConfig changes tolerance, quiet window and cooldown, it is used from the next tick on
func (c *ReapplyChannel) SetConfig(config configuration.ReapplyConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
}

// Tick runs a single observation. target is nil if the channel should not be commanded,
// observeErr is the error of reading the effective value, in which case observed is ignored.
func (c *ReapplyChannel) Tick(ctx context.Context, now time.Time, target *float64, observed float64, observeErr error) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = copyValue(target)

	if target == nil {
		c.phase = PhaseIdle
		c.state.QuietSince = nil
		return Decision{Phase: c.phase}
	}

	if observeErr != nil {
		// no observation this tick, timers are left as they are
		if c.phase == PhaseIdle {
			c.phase = PhaseObserving
		}
		return Decision{Phase: c.phase, Err: observeErr}
	}

	tolerance := c.config.Tolerance
	previous := c.state.LastObserved
	c.state.LastObserved = &observed

	if math.Abs(observed-*target) <= tolerance {
		c.state.QuietSince = nil
		c.phase = PhaseSettled
		return Decision{Phase: c.phase}
	}

	if previous != nil && math.Abs(observed-*previous) <= tolerance {
		if c.state.QuietSince == nil {
			quietSince := now
			c.state.QuietSince = &quietSince
		}
	} else {
		c.state.QuietSince = nil
	}
	c.phase = PhaseObserving

	if c.state.QuietSince == nil || now.Sub(*c.state.QuietSince) < c.config.QuietWindow {
		return Decision{Phase: c.phase}
	}
	if !c.state.LastCommandTime.IsZero() && now.Sub(c.state.LastCommandTime) < c.config.Cooldown {
		return Decision{Phase: c.phase}
	}

	c.phase = PhaseReapplying
	if err := c.apply(ctx, *target); err != nil {
		c.phase = PhaseObserving
		return Decision{Phase: PhaseReapplying, Err: fmt.Errorf("%s: %w", c.name, err)}
	}
	c.state.LastCommanded = copyValue(target)
	c.state.LastCommandTime = now
	c.state.QuietSince = nil
	c.reapplyCount++
	return Decision{Phase: PhaseReapplying, Commanded: true}
}

// ChannelStatus is a point in time view of a ReapplyChannel.
type ChannelStatus struct {
	Name         string                  `json:"name"`
	Phase        Phase                   `json:"phase"`
	Target       *float64                `json:"target,omitempty"`
	State        EffectiveActuationState `json:"state"`
	ReapplyCount int                     `json:"reapplyCount"`
}

func (c *ReapplyChannel) Status() ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	state.LastCommanded = copyValue(c.state.LastCommanded)
	state.LastObserved = copyValue(c.state.LastObserved)
	if c.state.QuietSince != nil {
		quietSince := *c.state.QuietSince
		state.QuietSince = &quietSince
	}
	return ChannelStatus{
		Name:         c.name,
		Phase:        c.phase,
		Target:       copyValue(c.target),
		State:        state,
		ReapplyCount: c.reapplyCount,
	}
}

func copyValue(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// observedValue picks a value from the power state, a missing value counts as a failed read
func observedValue(name string, value *float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, fmt.Errorf("%s: %w: value not reported", name, platform.ErrTransientRead)
	}
	return *value, nil
}
