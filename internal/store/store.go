package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/ui"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/qdm12/reprint"
)

// ErrDomainLocked is returned for writes to a domain which is exclusively held, e.g. by a calibration run
var ErrDomainLocked = errors.New("domain is locked")

type Domain string

const (
	DomainFan     Domain = "fan"
	DomainPower   Domain = "power"
	DomainBattery Domain = "battery"
)

// Snapshot is an immutable, generation-numbered copy of the runtime settings.
// Readers must not modify it.
type Snapshot struct {
	Generation uint64
	Settings   configuration.Settings
}

// Saver persists published settings
type Saver interface {
	SaveSettings(settings configuration.Settings) error
	SaveCalibration(domain string, table []configuration.CalibrationPoint) error
}

// Store holds the current settings snapshot. Reads are lock-free,
// writes are serialized, validated and published atomically.
type Store struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
	saver   Saver

	// domain -> owner
	locks cmap.ConcurrentMap[string, string]
}

// New creates a store with the given initial settings. saver may be nil.
func New(settings configuration.Settings, saver Saver) *Store {
	s := &Store{
		saver: saver,
		locks: cmap.New[string](),
	}
	s.current.Store(&Snapshot{
		Generation: 1,
		Settings:   copySettings(settings),
	})
	return s
}

func copySettings(settings configuration.Settings) configuration.Settings {
	return reprint.This(settings).(configuration.Settings)
}

// Current returns the active snapshot
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

func (s *Store) Generation() uint64 {
	return s.Current().Generation
}

// Settings returns a copy of the active settings
func (s *Store) Settings() configuration.Settings {
	return copySettings(s.Current().Settings)
}

// update applies mutate to a copy of the current settings and publishes the result.
// domain is checked against the lock table unless owner holds the lock.
func (s *Store) update(domain Domain, owner string, mutate func(settings *configuration.Settings) error) (*Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(domain) > 0 {
		if holder, locked := s.locks.Get(string(domain)); locked && holder != owner {
			return nil, fmt.Errorf("%s: %w by %s", domain, ErrDomainLocked, holder)
		}
	}

	previous := s.current.Load()
	settings := copySettings(previous.Settings)
	if err := mutate(&settings); err != nil {
		return nil, err
	}

	next := &Snapshot{
		Generation: previous.Generation + 1,
		Settings:   settings,
	}
	s.current.Store(next)

	if s.saver != nil {
		if err := s.saver.SaveSettings(copySettings(settings)); err != nil {
			// the new settings stay active for this run
			ui.Warning("Unable to persist settings: %v", err)
		}
	}
	return next, nil
}

func (s *Store) Fan() configuration.FanSettings {
	return s.Settings().Fan
}

func (s *Store) SetFan(fan configuration.FanSettings) (*Snapshot, error) {
	return s.SetFanAs("", fan)
}

// SetFanAs writes the fan settings on behalf of owner, which may hold the fan domain lock
func (s *Store) SetFanAs(owner string, fan configuration.FanSettings) (*Snapshot, error) {
	return s.update(DomainFan, owner, func(settings *configuration.Settings) error {
		if err := configuration.ValidateFan(&fan); err != nil {
			return err
		}
		settings.Fan = fan
		return nil
	})
}

func (s *Store) Power() configuration.PowerSettings {
	return s.Settings().Power
}

func (s *Store) SetPower(power configuration.PowerSettings) (*Snapshot, error) {
	return s.update(DomainPower, "", func(settings *configuration.Settings) error {
		if err := configuration.ValidatePower(&power); err != nil {
			return err
		}
		settings.Power = power
		return nil
	})
}

func (s *Store) Battery() configuration.BatterySettings {
	return s.Settings().Battery
}

func (s *Store) SetBattery(battery configuration.BatterySettings) (*Snapshot, error) {
	return s.update(DomainBattery, "", func(settings *configuration.Settings) error {
		if err := configuration.ValidateBattery(&battery); err != nil {
			return err
		}
		settings.Battery = battery
		return nil
	})
}

func (s *Store) Profile(source configuration.PowerSource) configuration.ProfileConfig {
	return s.Settings().Profiles.Get(source)
}

func (s *Store) SetProfile(source configuration.PowerSource, profile configuration.ProfileConfig) (*Snapshot, error) {
	return s.update("", "", func(settings *configuration.Settings) error {
		if err := configuration.ValidateProfile(source, profile); err != nil {
			return err
		}
		settings.Profiles.Set(source, profile)
		return nil
	})
}

func (s *Store) TelemetryPolicy() configuration.TelemetryPolicy {
	return s.Current().Settings.Telemetry
}

func (s *Store) SetTelemetryPolicy(policy configuration.TelemetryPolicy) (*Snapshot, error) {
	return s.update("", "", func(settings *configuration.Settings) error {
		if err := configuration.ValidateTelemetryPolicy(&policy); err != nil {
			return err
		}
		settings.Telemetry = policy
		return nil
	})
}

func (s *Store) FanCalibration() []configuration.CalibrationPoint {
	return s.Settings().FanCalibration
}

// SetFanCalibration publishes a new calibration table and persists it in its own bucket
func (s *Store) SetFanCalibration(table []configuration.CalibrationPoint) (*Snapshot, error) {
	snapshot, err := s.update("", "", func(settings *configuration.Settings) error {
		settings.FanCalibration = append([]configuration.CalibrationPoint{}, table...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.saver != nil {
		if err := s.saver.SaveCalibration(string(DomainFan), table); err != nil {
			ui.Warning("Unable to persist calibration table: %v", err)
		}
	}
	return snapshot, nil
}

// Lock gives owner exclusive write access to domain
func (s *Store) Lock(domain Domain, owner string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.locks.SetIfAbsent(string(domain), owner) {
		holder, _ := s.locks.Get(string(domain))
		return fmt.Errorf("%s: %w by %s", domain, ErrDomainLocked, holder)
	}
	return nil
}

// Unlock releases the lock of domain if it is held by owner
func (s *Store) Unlock(domain Domain, owner string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.locks.RemoveCb(string(domain), func(key string, holder string, exists bool) bool {
		return exists && holder == owner
	})
}

func (s *Store) IsLocked(domain Domain) bool {
	return s.locks.Has(string(domain))
}
