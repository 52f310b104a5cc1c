package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/telemetry"
	"github.com/fwctl/fwctl/internal/ui"
)

// Selection is the profile forwarded to the power and battery domains.
// It is never modified after being published.
type Selection struct {
	Source     configuration.PowerSource   `json:"source"`
	Profile    configuration.ProfileConfig `json:"profile"`
	Generation uint64                      `json:"generation"`
}

type SampleSource interface {
	Latest() (telemetry.Sample, bool)
}

// ProfileSelector watches the AC adapter state and publishes the matching profile.
type ProfileSelector struct {
	store   *store.Store
	samples SampleSource

	current atomic.Pointer[Selection]
}

func NewProfileSelector(s *store.Store, samples SampleSource) *ProfileSelector {
	return &ProfileSelector{
		store:   s,
		samples: samples,
	}
}

// Current returns the active selection, nil while the power source is unknown
func (p *ProfileSelector) Current() *Selection {
	return p.current.Load()
}

func (p *ProfileSelector) Run(ctx context.Context) error {
	ui.Debug("Starting profile selector...")
	for {
		p.Update()

		interval := p.store.Current().Settings.Profiles.PollInterval
		if interval <= 0 {
			interval = 2 * time.Second
		}
		select {
		case <-ctx.Done():
			ui.Debug("Stopping profile selector...")
			return nil
		case <-time.After(interval):
		}
	}
}

// Update publishes a new selection if the power source or the settings changed
func (p *ProfileSelector) Update() {
	sample, ok := p.samples.Latest()
	if !ok {
		return
	}
	acPresent, known := sample.AcPresent()
	if !known {
		return
	}

	source := configuration.PowerSourceBattery
	if acPresent {
		source = configuration.PowerSourceAc
	}

	snapshot := p.store.Current()
	previous := p.current.Load()
	if previous != nil && previous.Source == source && previous.Generation == snapshot.Generation {
		return
	}
	if previous == nil || previous.Source != source {
		ui.Info("Power source is now '%s', using the %s profile", source, source)
	}

	profile := snapshot.Settings.Profiles.Get(source)
	profile.SocThresholdPct = copyValue(profile.SocThresholdPct)
	p.current.Store(&Selection{
		Source:     source,
		Profile:    profile,
		Generation: snapshot.Generation,
	})
}
