package telemetry

import (
	"context"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/ui"
)

// PolicySource returns the currently active telemetry policy
type PolicySource func() configuration.TelemetryPolicy

// Sampler periodically reads the platform and records a Sample into its RetentionBuffer.
type Sampler struct {
	platform platform.Platform
	policy   PolicySource
	buffer   *RetentionBuffer
	now      func() time.Time
}

func NewSampler(p platform.Platform, policy PolicySource) *Sampler {
	return &Sampler{
		platform: p,
		policy:   policy,
		buffer:   NewRetentionBuffer(policy().Retention()),
		now:      time.Now,
	}
}

func (s *Sampler) Buffer() *RetentionBuffer {
	return s.buffer
}

// Recent returns all retained samples at or after since
func (s *Sampler) Recent(since time.Time) []Sample {
	return s.buffer.Since(since)
}

func (s *Sampler) Latest() (Sample, bool) {
	return s.buffer.Latest()
}

func (s *Sampler) Run(ctx context.Context) error {
	ui.Debug("Starting telemetry sampler...")
	for {
		policy := s.policy()
		s.buffer.SetRetention(policy.Retention())

		select {
		case <-ctx.Done():
			ui.Debug("Stopping telemetry sampler...")
			return nil
		case <-time.After(policy.PollInterval()):
			if err := s.SampleOnce(ctx); err != nil {
				ui.Warning("Telemetry: %v", err)
			}
		}
	}
}

// SampleOnce takes a single sample. The thermal reading is required, power state is optional.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	thermal, err := s.platform.ReadThermal(ctx)
	if err != nil {
		return err
	}

	var power *platform.PowerState
	state, err := s.platform.ReadPowerState(ctx)
	if err != nil {
		ui.Debug("Telemetry: power state unavailable: %v", err)
	} else {
		power = &state
	}

	s.buffer.Insert(NewSample(s.now(), thermal, power))
	return nil
}
